package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid decimal amount")
)

// minorPerMajor is the number of minor units in one major unit (two decimal places).
const minorPerMajor = 100

// Money keeps amounts in integer minor units (cents) to avoid floating point drift.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Parse reads a decimal string such as "150", "150.5" or "150.50" into minor units.
func Parse(raw, currency string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Money{}, ErrInvalidAmount
	}
	negative := false
	if strings.HasPrefix(raw, "-") {
		negative = true
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if !digitsOnly(whole) || (hasFrac && (!digitsOnly(frac) || len(frac) > 2)) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	var minor int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
	}
	amount := major*minorPerMajor + minor
	if negative {
		amount = -amount
	}
	return New(amount, currency)
}

// digitsOnly rejects empty parts and any sign strconv would otherwise accept.
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Percent returns percent/100 of the amount rounded half away from zero to the nearest minor unit.
func (m Money) Percent(percent int64) Money {
	product := m.Amount * percent
	half := int64(50)
	if product < 0 {
		half = -half
	}
	return Money{Amount: (product + half) / 100, Currency: m.Currency}
}

// Min returns the smaller of two amounts in the same currency.
func (m Money) Min(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.Amount < m.Amount {
		return other, nil
	}
	return m, nil
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// Decimal renders the amount with two decimal places, e.g. "200.00".
func (m Money) Decimal() string {
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/minorPerMajor, amount%minorPerMajor)
}

func (m Money) String() string {
	return m.Decimal() + " " + m.Currency
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
