package booking

import (
	"context"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/shared/daterange"
)

const rescheduleBookingKey = "booking.reschedule"

type RescheduleBookingCommand struct {
	BookingID string `validate:"required"`
	CheckIn   string `validate:"required,datetime=2006-01-02"`
	CheckOut  string `validate:"required,datetime=2006-01-02"`
}

func (c RescheduleBookingCommand) Key() string { return rescheduleBookingKey }

type RescheduleBookingHandler struct {
	Bookings Lifecycle
}

func (h *RescheduleBookingHandler) Handle(ctx context.Context, cmd RescheduleBookingCommand) (*dto.Booking, error) {
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	b, err := h.Bookings.Reschedule(ctx, domainbooking.ID(cmd.BookingID), dr)
	if err != nil {
		return nil, err
	}
	return dto.MapBooking(b), nil
}

var _ commands.Handler[RescheduleBookingCommand, *dto.Booking] = (*RescheduleBookingHandler)(nil)
