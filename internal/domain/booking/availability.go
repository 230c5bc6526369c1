package booking

import (
	"context"

	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
)

// AvailabilityReader is the read side the availability check needs from a store.
type AvailabilityReader interface {
	// ActiveBookingsForUnit returns bookings of the unit that hold nights and may touch dr.
	// Implementations may return a superset; the overlap test is applied again here.
	ActiveBookingsForUnit(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]*Booking, error)
}

// IsAvailable reports whether no active booking of the unit overlaps dr.
// Stays that end on the day another starts do not overlap. exclude skips one booking,
// used when the booking being checked is itself being moved.
func IsAvailable(ctx context.Context, reader AvailabilityReader, unitID chalet.ID, dr daterange.DateRange, exclude ID) (bool, error) {
	conflicts, err := Conflicts(ctx, reader, unitID, dr, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns the ids of active bookings whose range overlaps dr.
func Conflicts(ctx context.Context, reader AvailabilityReader, unitID chalet.ID, dr daterange.DateRange, exclude ID) ([]ID, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	existing, err := reader.ActiveBookingsForUnit(ctx, unitID, dr)
	if err != nil {
		return nil, err
	}
	var ids []ID
	for _, b := range existing {
		if b == nil || b.UnitID != unitID || !b.Active() {
			continue
		}
		if exclude != "" && b.ID == exclude {
			continue
		}
		if b.Range.Overlaps(dr) {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}
