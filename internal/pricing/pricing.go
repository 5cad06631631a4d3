package pricing

import "github.com/shopspring/decimal"

var (
	// MarginBase is added to 1 to price a quote paid in cash or PIX.
	MarginBase = decimal.RequireFromString("0.22")
	// CreditCardTax is added to 1 to price a quote paid by credit card.
	CreditCardTax = decimal.RequireFromString("0.24")
)

// ItemInput represents the item-level inputs used to price a quote line.
type ItemInput struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Breakdown contains the intermediate values of the pricing calculation.
type Breakdown struct {
	Raw     decimal.Decimal
	Margin  decimal.Decimal
	CardTax decimal.Decimal
}

// Totals contains the roll-up values shown to the client.
type Totals struct {
	Raw  decimal.Decimal
	Cash decimal.Decimal
	Card decimal.Decimal
}

// Result groups the full pricing output, including detailed breakdown and totals.
type Result struct {
	Breakdown Breakdown
	Totals    Totals
}

// LineSubtotal returns quantity * unitPrice without rounding.
func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// AggregateRaw sums the line subtotals of items. An empty list totals zero.
func AggregateRaw(items []ItemInput) decimal.Decimal {
	raw := decimal.Zero
	for _, item := range items {
		raw = raw.Add(LineSubtotal(item.Quantity, item.UnitPrice))
	}
	return raw
}

// TotalCash applies the cash/PIX margin to a raw total.
func TotalCash(raw decimal.Decimal) decimal.Decimal {
	return raw.Mul(decimal.NewFromInt(1).Add(MarginBase))
}

// TotalCard applies the credit card surcharge to a raw total.
func TotalCard(raw decimal.Decimal) decimal.Decimal {
	return raw.Mul(decimal.NewFromInt(1).Add(CreditCardTax))
}

// Calculate computes pricing values for a list of items.
func Calculate(items []ItemInput) Result {
	raw := AggregateRaw(items)
	cash := TotalCash(raw)
	card := TotalCard(raw)

	return Result{
		Breakdown: Breakdown{
			Raw:     raw,
			Margin:  cash.Sub(raw),
			CardTax: card.Sub(raw),
		},
		Totals: Totals{
			Raw:  raw,
			Cash: cash,
			Card: card,
		},
	}
}
