package quote

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/klsinformatica/orcamento/internal/pricing"
)

// MaxUnitPrice is the largest unit price a candidate may carry.
var MaxUnitPrice = decimal.New(1, 12)

const (
	maxPriceScale  = 2
	maxPriceDigits = 13
)

// Item is a single priced line of a quote. Items are never edited in place;
// correcting one means removing it and adding a new one.
type Item struct {
	ID          string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Candidate holds user-supplied item data before validation.
type Candidate struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Validate checks the candidate in field order and returns the first
// *ValidationError found.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return newValidationError(FieldDescription, ErrDescriptionRequired)
	}
	if c.Quantity < 1 {
		return newValidationError(FieldQuantity, ErrInvalidQuantity)
	}
	if err := checkUnitPrice(c.UnitPrice); err != nil {
		return newValidationError(FieldUnitPrice, err)
	}
	return nil
}

// checkUnitPrice looks at the digits and exponent before any arithmetic, so
// a value such as 1e50000000 is refused without being expanded.
func checkUnitPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return ErrInvalidUnitPrice
	}

	intDigits, scale := shape(p)
	if scale > maxPriceScale {
		return ErrUnitPricePrecision
	}
	if intDigits > maxPriceDigits || p.GreaterThan(MaxUnitPrice) {
		return ErrUnitPriceTooLarge
	}
	return nil
}

// shape returns the number of digits before the decimal point and the
// number of significant digits after it, ignoring trailing zeros.
func shape(d decimal.Decimal) (intDigits, scale int64) {
	coef := d.Coefficient()
	digits := strings.TrimLeft(coef.Abs(coef).String(), "0")
	trimmed := strings.TrimRight(digits, "0")
	if trimmed == "" {
		return 0, 0
	}

	exp := int64(d.Exponent()) + int64(len(digits)-len(trimmed))
	if exp < 0 {
		scale = -exp
	}
	return int64(len(trimmed)) + exp, scale
}

// NewItem validates c and builds an item with the given id.
func NewItem(id string, c Candidate) (Item, error) {
	if err := c.Validate(); err != nil {
		return Item{}, err
	}

	return Item{
		ID:          id,
		Description: strings.TrimSpace(c.Description),
		Quantity:    c.Quantity,
		UnitPrice:   c.UnitPrice,
	}, nil
}

// Subtotal returns quantity * unit price.
func (i Item) Subtotal() decimal.Decimal {
	return pricing.LineSubtotal(i.Quantity, i.UnitPrice)
}

// PricingInputs adapts items to the pricing engine.
func PricingInputs(items []Item) []pricing.ItemInput {
	inputs := make([]pricing.ItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, pricing.ItemInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return inputs
}
