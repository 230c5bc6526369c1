package booking

import (
	"context"

	"resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
)

// Store is the narrow contract the reservation flow needs from persistence.
// A Store is always scoped to one unit of work.
type Store interface {
	AvailabilityReader

	// UnitByID returns ErrUnitNotFound for unknown or deleted units.
	UnitByID(ctx context.Context, id chalet.ID) (*chalet.Chalet, error)
	// ActiveRateRules returns active rules for the unit or global rules whose window touches dr.
	ActiveRateRules(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]rates.Rule, error)
	// AddOnsByIDs returns addons.ErrNotFound when any id is unknown.
	AddOnsByIDs(ctx context.Context, ids []addons.ID) ([]addons.AddOn, error)
	Settings(ctx context.Context) (settings.Settings, error)

	// InsertBooking persists the booking together with its add-on rows. It returns
	// ErrBookingConflict when the store detects a concurrent claim on the same nights.
	InsertBooking(ctx context.Context, b *Booking, rows []addons.Line) error
	BookingByID(ctx context.Context, id ID) (*Booking, error)
	// UpdateBooking saves status, range and amounts; Version is checked and bumped.
	UpdateBooking(ctx context.Context, b *Booking) error
}
