package booking

import (
	"context"
	"strings"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	"resort/internal/app/middleware"
	"resort/internal/app/reservations"
	domainaddons "resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

const createBookingKey = "booking.create"

type AddOnRequest struct {
	AddOnID  string `json:"add_on_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

type CreateBookingCommand struct {
	UnitID          string         `validate:"required"`
	GuestID         string         `validate:"required"`
	CheckIn         string         `validate:"required,datetime=2006-01-02"`
	CheckOut        string         `validate:"required,datetime=2006-01-02"`
	Guests          int            `validate:"min=1"`
	AddOns          []AddOnRequest `validate:"dive"`
	Discount        string         `validate:"omitempty,numeric"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	Bookings Lifecycle
	// Currency is the property currency used to read discount amounts.
	Currency string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	discount, err := parseDiscount(cmd.Discount, h.Currency)
	if err != nil {
		return nil, err
	}
	req := reservations.CreateRequest{
		UnitID:   chalet.ID(cmd.UnitID),
		GuestID:  cmd.GuestID,
		Range:    dr,
		Guests:   cmd.Guests,
		Discount: discount,
	}
	for _, a := range cmd.AddOns {
		req.AddOns = append(req.AddOns, domainaddons.Request{AddOnID: domainaddons.ID(a.AddOnID), Quantity: a.Quantity})
	}
	b, err := h.Bookings.CreateBooking(ctx, req)
	if err != nil {
		return nil, err
	}
	return dto.MapBooking(b), nil
}

func parseDiscount(raw, currency string) (money.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return money.Money{}, nil
	}
	return money.Parse(raw, currency)
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
