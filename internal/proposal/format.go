package proposal

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	fixed := rounded.StringFixed(2)
	cents := fixed[len(fixed)-2:]
	reais := strings.ReplaceAll(humanize.BigComma(rounded.BigInt()), ",", ".")

	return sign + "R$ " + reais + "," + cents
}
