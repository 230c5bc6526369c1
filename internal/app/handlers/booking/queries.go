package booking

import (
	"context"

	"resort/internal/app/dto"
	"resort/internal/app/queries"
	"resort/internal/app/reservations"
	domainaddons "resort/internal/domain/addons"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
)

const (
	getBookingKey = "booking.get"
	quoteStayKey  = "booking.quote"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	Bookings Lifecycle
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	b, err := h.Bookings.Booking(ctx, domainbooking.ID(q.BookingID))
	if err != nil {
		return nil, err
	}
	return dto.MapBooking(b), nil
}

type QuoteStayQuery struct {
	UnitID   string         `validate:"required"`
	CheckIn  string         `validate:"required,datetime=2006-01-02"`
	CheckOut string         `validate:"required,datetime=2006-01-02"`
	Guests   int            `validate:"min=0"`
	AddOns   []AddOnRequest `validate:"dive"`
	Discount string         `validate:"omitempty,numeric"`
}

func (q QuoteStayQuery) Key() string { return quoteStayKey }

type QuoteStayHandler struct {
	Bookings Lifecycle
	Currency string
}

func (h *QuoteStayHandler) Handle(ctx context.Context, q QuoteStayQuery) (*dto.Quote, error) {
	dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return nil, err
	}
	discount, err := parseDiscount(q.Discount, h.Currency)
	if err != nil {
		return nil, err
	}
	req := reservations.QuoteRequest{UnitID: chalet.ID(q.UnitID), Range: dr, Guests: q.Guests, Discount: discount}
	for _, a := range q.AddOns {
		req.AddOns = append(req.AddOns, domainaddons.Request{AddOnID: domainaddons.ID(a.AddOnID), Quantity: a.Quantity})
	}
	est, err := h.Bookings.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	return dto.MapQuote(est), nil
}

var (
	_ queries.Handler[GetBookingQuery, *dto.Booking] = (*GetBookingHandler)(nil)
	_ queries.Handler[QuoteStayQuery, *dto.Quote]    = (*QuoteStayHandler)(nil)
)
