package scenario

import (
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// ParseAmount turns free-form sum input into a positive amount rounded to two
// decimal places. It accepts a plain decimal number or a simple arithmetic
// expression such as "20+15". Commas are rejected to avoid ambiguity with
// decimal separators. errorText is the user-facing retry prompt.
func ParseAmount(text, errorText string) (decimal.Decimal, error) {
	if strings.Contains(text, ",") {
		return decimal.Zero, &ValidationError{Message: errorText}
	}

	result, err := decimal.NewFromString(text)
	if err != nil {
		expr, err := govaluate.NewEvaluableExpression(text)
		if err != nil {
			return decimal.Zero, &ValidationError{Message: errorText}
		}
		value, err := expr.Evaluate(nil)
		if err != nil {
			return decimal.Zero, &ValidationError{Message: errorText}
		}
		f, ok := value.(float64)
		if !ok {
			return decimal.Zero, &ValidationError{Message: errorText}
		}
		result = decimal.NewFromFloat(f)
	}

	result = result.Round(2)
	if !result.IsPositive() {
		return decimal.Zero, &ValidationError{Message: errorText}
	}
	return result, nil
}
