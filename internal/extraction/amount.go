package extraction

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var nonAmountChars = regexp.MustCompile(`[^\d.]`)

// ParseAmount strips everything except digits and the decimal point and
// parses the rest. Anything that does not survive is reported as not found.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := nonAmountChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
