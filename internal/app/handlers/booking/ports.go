package booking

import (
	"context"

	"resort/internal/app/reservations"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/shared/daterange"
)

// Lifecycle is the part of reservations.Manager the booking handlers drive.
type Lifecycle interface {
	CreateBooking(ctx context.Context, req reservations.CreateRequest) (*domainbooking.Booking, error)
	Confirm(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
	CheckIn(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
	CheckOut(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
	Cancel(ctx context.Context, id domainbooking.ID, reason string) (*domainbooking.Booking, error)
	MarkNoShow(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
	Reschedule(ctx context.Context, id domainbooking.ID, dr daterange.DateRange) (*domainbooking.Booking, error)
	Quote(ctx context.Context, req reservations.QuoteRequest) (reservations.Estimate, error)
	Booking(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
}

var _ Lifecycle = (*reservations.Manager)(nil)
