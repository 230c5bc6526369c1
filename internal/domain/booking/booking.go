package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/events"
	"resort/internal/domain/shared/money"
)

var (
	ErrInvalidRange        = daterange.ErrInvalidRange
	ErrInvalidGuestCount   = errors.New("booking: guest count must be between 1 and the unit capacity")
	ErrUnavailable         = errors.New("booking: unit unavailable for the requested dates")
	ErrUnitNotFound        = errors.New("booking: unit not found or not bookable")
	ErrInvalidTransition   = errors.New("booking: invalid status transition")
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrBookingConflict     = errors.New("booking: concurrent booking for the same nights")
	ErrGuestRequired       = errors.New("booking: guest id required")
	ErrAmountsInconsistent = errors.New("booking: total must equal base + add-ons - discount")
)

type ID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// HoldsNights reports whether a booking in this status still blocks its dates.
// Only cancelled bookings release them; no-shows stay charged for the stay.
func (s Status) HoldsNights() bool {
	return s != StatusCancelled
}

// UnavailableError lists the bookings that already hold nights of the requested range.
type UnavailableError struct {
	UnitID    chalet.ID
	Range     daterange.DateRange
	Conflicts []ID
}

func (e *UnavailableError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, id := range e.Conflicts {
		ids[i] = string(id)
	}
	return fmt.Sprintf("booking: unit %s unavailable for %s (conflicts: %s)", e.UnitID, e.Range, strings.Join(ids, ","))
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

type Booking struct {
	ID             ID
	UnitID         chalet.ID
	GuestID        string
	Range          daterange.DateRange
	Guests         int
	Nights         []pricing.NightRate
	AddOns         []addons.Line
	BaseAmount     money.Money
	AddOnAmount    money.Money
	DiscountAmount money.Money
	DepositAmount  money.Money
	TotalAmount    money.Money
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	Version        int64
	events.EventRecorder
}

type CreateParams struct {
	ID        ID
	UnitID    chalet.ID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Capacity  int
	Quote     pricing.Quote
	Discount  money.Money
	Deposit   money.Money
	CreatedAt time.Time
}

// ValidateGuests enforces 1 <= guests <= capacity.
func ValidateGuests(guests, capacity int) error {
	if guests < 1 || guests > capacity {
		return fmt.Errorf("%w: %d guests, capacity %d", ErrInvalidGuestCount, guests, capacity)
	}
	return nil
}

// New builds a pending booking from a priced quote.
func New(p CreateParams) (*Booking, error) {
	if strings.TrimSpace(p.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if err := p.Range.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateGuests(p.Guests, p.Capacity); err != nil {
		return nil, err
	}
	now := p.CreatedAt.UTC()
	b := &Booking{
		ID:        p.ID,
		UnitID:    p.UnitID,
		GuestID:   strings.TrimSpace(p.GuestID),
		Range:     p.Range,
		Guests:    p.Guests,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.applyQuote(p.Quote, p.Discount, p.Deposit); err != nil {
		return nil, err
	}
	b.Record(Requested{
		BookingID: b.ID,
		UnitID:    b.UnitID,
		GuestID:   b.GuestID,
		Range:     b.Range,
		Guests:    b.Guests,
		Total:     b.TotalAmount,
		Deposit:   b.DepositAmount,
		At:        now,
	})
	return b, nil
}

func (b *Booking) applyQuote(q pricing.Quote, discount, deposit money.Money) error {
	total, err := q.Total(discount)
	if err != nil {
		return err
	}
	if discount.Currency == "" {
		discount = money.Zero(total.Currency)
	}
	lines := make([]addons.Line, len(q.AddOns))
	for i, line := range q.AddOns {
		line.BookingID = string(b.ID)
		lines[i] = line
	}
	b.Nights = append([]pricing.NightRate(nil), q.Nights...)
	b.AddOns = lines
	b.BaseAmount = q.BaseAmount
	b.AddOnAmount = q.AddOnAmount
	b.DiscountAmount = discount
	b.DepositAmount = deposit
	b.TotalAmount = total
	return b.CheckAmounts()
}

// CheckAmounts verifies Total == Base + AddOn - Discount.
func (b *Booking) CheckAmounts() error {
	sum, err := b.BaseAmount.Add(b.AddOnAmount)
	if err != nil {
		return err
	}
	if sum, err = sum.Sub(b.DiscountAmount); err != nil {
		return err
	}
	if sum != b.TotalAmount {
		return ErrAmountsInconsistent
	}
	return nil
}

// Active reports whether the booking still holds its nights.
func (b *Booking) Active() bool {
	return b.DeletedAt == nil && b.Status.HoldsNights()
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return b.invalid(StatusConfirmed)
	}
	b.transition(StatusConfirmed, now)
	b.Record(Confirmed{BookingID: b.ID, UnitID: b.UnitID, Range: b.Range, Total: b.TotalAmount, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckIn(now time.Time) error {
	if b.Status != StatusConfirmed {
		return b.invalid(StatusCheckedIn)
	}
	b.transition(StatusCheckedIn, now)
	b.Record(CheckedIn{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckOut(now time.Time) error {
	if b.Status != StatusCheckedIn {
		return b.invalid(StatusCheckedOut)
	}
	b.transition(StatusCheckedOut, now)
	b.Record(CheckedOut{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.Status {
	case StatusPending, StatusConfirmed:
	default:
		return b.invalid(StatusCancelled)
	}
	b.transition(StatusCancelled, now)
	b.Record(Cancelled{BookingID: b.ID, UnitID: b.UnitID, Range: b.Range, Reason: reason, At: b.UpdatedAt})
	return nil
}

func (b *Booking) MarkNoShow(now time.Time) error {
	if b.Status != StatusConfirmed {
		return b.invalid(StatusNoShow)
	}
	b.transition(StatusNoShow, now)
	b.Record(NoShowRecorded{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

// Reschedule moves a pending or confirmed stay to a new range, re-pricing it from q.
// The original discount is kept and must still fit the new subtotal.
func (b *Booking) Reschedule(dr daterange.DateRange, q pricing.Quote, deposit money.Money, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return fmt.Errorf("%w: cannot reschedule %s booking", ErrInvalidTransition, b.Status)
	}
	if err := dr.Validate(); err != nil {
		return err
	}
	previous := b.Range
	discount := b.DiscountAmount
	if discount.IsZero() {
		discount = money.Money{}
	}
	if err := b.applyQuote(q, discount, deposit); err != nil {
		return err
	}
	b.Range = dr
	b.UpdatedAt = now.UTC()
	b.Record(Rescheduled{BookingID: b.ID, UnitID: b.UnitID, From: previous, To: dr, Total: b.TotalAmount, At: b.UpdatedAt})
	return nil
}

func (b *Booking) transition(to Status, now time.Time) {
	b.Status = to
	b.UpdatedAt = now.UTC()
}

func (b *Booking) invalid(to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
}
