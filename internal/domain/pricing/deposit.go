package pricing

import (
	"errors"
	"fmt"

	"resort/internal/domain/settings"
	"resort/internal/domain/shared/money"
)

var ErrInvalidPolicy = errors.New("pricing: invalid deposit policy")

// ComputeDeposit derives the upfront amount due for total under policy.
// Percentage deposits round half-up to the minor unit; fixed deposits never exceed the total.
func ComputeDeposit(total money.Money, policy settings.DepositPolicy) (money.Money, error) {
	switch policy.Type {
	case settings.DepositPercentage:
		if policy.Percentage < 0 || policy.Percentage > 100 {
			return money.Money{}, fmt.Errorf("%w: percentage %d out of range", ErrInvalidPolicy, policy.Percentage)
		}
		return total.Percent(policy.Percentage), nil
	case settings.DepositFixed:
		fixed := policy.FixedAmount
		if fixed.Currency == "" {
			fixed.Currency = total.Currency
		}
		if fixed.IsNegative() {
			return money.Money{}, fmt.Errorf("%w: negative fixed amount", ErrInvalidPolicy)
		}
		deposit, err := fixed.Min(total)
		if err != nil {
			return money.Money{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		return deposit, nil
	default:
		return money.Money{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPolicy, policy.Type)
	}
}
