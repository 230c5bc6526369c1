package booking

import (
	"context"
	"fmt"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	domainbooking "resort/internal/domain/booking"
)

const transitionBookingKey = "booking.transition"

const (
	ActionConfirm  = "confirm"
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
	ActionCancel   = "cancel"
	ActionNoShow   = "no_show"
)

type TransitionBookingCommand struct {
	BookingID string `validate:"required"`
	Action    string `validate:"required,oneof=confirm check_in check_out cancel no_show"`
	Reason    string `validate:"max=500"`
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

type TransitionBookingHandler struct {
	Bookings Lifecycle
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.Booking, error) {
	id := domainbooking.ID(cmd.BookingID)
	var (
		b   *domainbooking.Booking
		err error
	)
	switch cmd.Action {
	case ActionConfirm:
		b, err = h.Bookings.Confirm(ctx, id)
	case ActionCheckIn:
		b, err = h.Bookings.CheckIn(ctx, id)
	case ActionCheckOut:
		b, err = h.Bookings.CheckOut(ctx, id)
	case ActionCancel:
		b, err = h.Bookings.Cancel(ctx, id, cmd.Reason)
	case ActionNoShow:
		b, err = h.Bookings.MarkNoShow(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", domainbooking.ErrInvalidTransition, cmd.Action)
	}
	if err != nil {
		return nil, err
	}
	return dto.MapBooking(b), nil
}

var _ commands.Handler[TransitionBookingCommand, *dto.Booking] = (*TransitionBookingHandler)(nil)
