package quote

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseQuantity reads a whole quantity such as "3" or "3.0". Anything else,
// including values that do not fit an int32, yields 0 so Validate rejects it.
func ParseQuantity(s string) int {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}

	intDigits, scale := shape(d)
	if scale > 0 || intDigits > 10 {
		return 0
	}
	n := d.IntPart()
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return int(n)
}

// ParseUnitPrice reads a price, accepting a decimal comma. Unparseable input
// yields zero so Validate rejects it.
func ParseUnitPrice(s string) decimal.Decimal {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
