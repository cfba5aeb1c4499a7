package payment

import "github.com/shopspring/decimal"

// ValidatePriceFloor rejects purchase requests whose price-per-credit ratio
// falls below the configured floor. A heuristic floor, not a price lookup:
// future discounting stays possible while gross client-side manipulation
// (thousands of credits for a trivial amount) is blocked before any payment
// intent is created.
func ValidatePriceFloor(amount decimal.Decimal, credits int, floorRatio decimal.Decimal) error {
	if credits <= 0 || amount.Sign() <= 0 {
		return ErrInvalidPriceRatio
	}

	ratio := amount.Div(decimal.NewFromInt(int64(credits)))
	if ratio.LessThan(floorRatio) {
		return ErrInvalidPriceRatio
	}

	return nil
}
