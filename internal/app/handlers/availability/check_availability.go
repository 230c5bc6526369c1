package availability

import (
	"context"

	"resort/internal/app/dto"
	"resort/internal/app/queries"
	"resort/internal/app/reservations"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

type CheckAvailabilityQuery struct {
	UnitID           string `validate:"required"`
	CheckIn          string `validate:"required,datetime=2006-01-02"`
	CheckOut         string `validate:"required,datetime=2006-01-02"`
	ExcludeBookingID string
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type Checker interface {
	CheckAvailability(ctx context.Context, unitID chalet.ID, dr daterange.DateRange, exclude domainbooking.ID) (reservations.Availability, error)
}

type CheckAvailabilityHandler struct {
	Checker Checker
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (*dto.Availability, error) {
	dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return nil, err
	}
	res, err := h.Checker.CheckAvailability(ctx, chalet.ID(q.UnitID), dr, domainbooking.ID(q.ExcludeBookingID))
	if err != nil {
		return nil, err
	}
	return dto.MapAvailability(res), nil
}

var _ queries.Handler[CheckAvailabilityQuery, *dto.Availability] = (*CheckAvailabilityHandler)(nil)
