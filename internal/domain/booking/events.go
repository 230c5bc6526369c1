package booking

import (
	"time"

	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

type Requested struct {
	BookingID ID
	UnitID    chalet.ID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Total     money.Money
	Deposit   money.Money
	At        time.Time
}

func (e Requested) EventName() string     { return "booking.requested" }
func (e Requested) AggregateID() string   { return string(e.BookingID) }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	BookingID ID
	UnitID    chalet.ID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e Confirmed) EventName() string     { return "booking.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.BookingID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type CheckedIn struct {
	BookingID ID
	At        time.Time
}

func (e CheckedIn) EventName() string     { return "booking.checked_in" }
func (e CheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e CheckedIn) OccurredAt() time.Time { return e.At }

type CheckedOut struct {
	BookingID ID
	At        time.Time
}

func (e CheckedOut) EventName() string     { return "booking.checked_out" }
func (e CheckedOut) AggregateID() string   { return string(e.BookingID) }
func (e CheckedOut) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	BookingID ID
	UnitID    chalet.ID
	Range     daterange.DateRange
	Reason    string
	At        time.Time
}

func (e Cancelled) EventName() string     { return "booking.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.BookingID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type NoShowRecorded struct {
	BookingID ID
	At        time.Time
}

func (e NoShowRecorded) EventName() string     { return "booking.no_show" }
func (e NoShowRecorded) AggregateID() string   { return string(e.BookingID) }
func (e NoShowRecorded) OccurredAt() time.Time { return e.At }

type Rescheduled struct {
	BookingID ID
	UnitID    chalet.ID
	From      daterange.DateRange
	To        daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e Rescheduled) EventName() string     { return "booking.rescheduled" }
func (e Rescheduled) AggregateID() string   { return string(e.BookingID) }
func (e Rescheduled) OccurredAt() time.Time { return e.At }
