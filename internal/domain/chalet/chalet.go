package chalet

import (
	"errors"
	"strings"
	"time"

	"resort/internal/domain/shared/money"
)

var (
	ErrInvalidCapacity = errors.New("chalet: capacity must be positive")
	ErrInvalidPrice    = errors.New("chalet: nightly prices must be non-negative and share a currency")
)

type ID string

// Chalet is a rentable unit with its fallback nightly prices.
type Chalet struct {
	ID           ID
	Name         string
	Capacity     int
	BasePrice    money.Money
	WeekendPrice money.Money
	Active       bool
	DeletedAt    *time.Time
}

type Params struct {
	ID           ID
	Name         string
	Capacity     int
	BasePrice    money.Money
	WeekendPrice money.Money
	Active       bool
}

func New(p Params) (*Chalet, error) {
	if strings.TrimSpace(string(p.ID)) == "" {
		return nil, errors.New("chalet: id required")
	}
	if p.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	weekend := p.WeekendPrice
	if weekend.Currency == "" && weekend.Amount == 0 {
		weekend = p.BasePrice
	}
	if p.BasePrice.IsNegative() || weekend.IsNegative() ||
		p.BasePrice.Currency == "" || p.BasePrice.Currency != weekend.Currency {
		return nil, ErrInvalidPrice
	}
	return &Chalet{
		ID:           p.ID,
		Name:         strings.TrimSpace(p.Name),
		Capacity:     p.Capacity,
		BasePrice:    p.BasePrice,
		WeekendPrice: weekend,
		Active:       p.Active,
	}, nil
}

// Bookable reports whether new stays may be taken for the unit.
func (c *Chalet) Bookable() bool {
	return c != nil && c.Active && c.DeletedAt == nil
}

// Currency is the currency every price of the unit is quoted in.
func (c *Chalet) Currency() string {
	return c.BasePrice.Currency
}
