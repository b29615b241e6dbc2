package payment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned for a provider amount that is not a decimal
// with at most two fraction digits.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a provider decimal string such as "180.00" to cents.
func ParseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") || len(frac) > 2 || (hasFrac && frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || strings.HasPrefix(frac, "-") || strings.HasPrefix(frac, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if units > (math.MaxInt64-cents)/100 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, value)
	}
	return units*100 + cents, nil
}

// FormatAmount renders cents as a provider decimal string.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
