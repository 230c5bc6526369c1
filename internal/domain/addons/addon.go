package addons

import (
	"errors"
	"fmt"

	"resort/internal/domain/shared/money"
)

var (
	ErrNotFound        = errors.New("addons: add-on not found")
	ErrInactive        = errors.New("addons: add-on is not offered")
	ErrInvalidQuantity = errors.New("addons: quantity must be positive")
	ErrInvalidMode     = errors.New("addons: unknown pricing mode")
)

type ID string

type Mode string

const (
	PerNight Mode = "per_night"
	OneTime  Mode = "one_time"
)

func (m Mode) Valid() bool {
	return m == PerNight || m == OneTime
}

// AddOn is an optional extra sold with a stay.
type AddOn struct {
	ID     ID
	Name   string
	Price  money.Money
	Mode   Mode
	Active bool
}

// Request asks for quantity units of an add-on.
type Request struct {
	AddOnID  ID
	Quantity int
}

// Line is the priced snapshot stored with a booking; later catalog price changes do not touch it.
type Line struct {
	BookingID string
	AddOnID   ID
	Name      string
	Mode      Mode
	Quantity  int
	UnitPrice money.Money
	Subtotal  money.Money
}

// LineFor snapshots the add-on for a stay: unitPrice * quantity, times nights for per-night add-ons.
func (a AddOn) LineFor(quantity, nights int) (Line, error) {
	if !a.Active {
		return Line{}, fmt.Errorf("%w: %s", ErrInactive, a.ID)
	}
	if quantity <= 0 {
		return Line{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, a.ID)
	}
	multiplier := int64(quantity)
	switch a.Mode {
	case PerNight:
		multiplier *= int64(nights)
	case OneTime:
	default:
		return Line{}, fmt.Errorf("%w: %q", ErrInvalidMode, a.Mode)
	}
	return Line{
		AddOnID:   a.ID,
		Name:      a.Name,
		Mode:      a.Mode,
		Quantity:  quantity,
		UnitPrice: a.Price,
		Subtotal:  a.Price.Multiply(multiplier),
	}, nil
}
