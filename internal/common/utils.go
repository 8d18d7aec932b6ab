package common

import (
	"strconv"
	"strings"
)

// ParseLeadingFloat extracts the first numeric token from strings like
// "10 mph" or "5 to 10 mph". Returns false when no number is present.
func ParseLeadingFloat(s string) (float64, bool) {
	for _, tok := range strings.Fields(s) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 {
	return c*9/5 + 32
}

// FToC converts Fahrenheit to Celsius.
func FToC(f float64) float64 {
	return (f - 32) * 5 / 9
}
