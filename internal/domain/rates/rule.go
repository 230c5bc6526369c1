package rates

import (
	"errors"
	"strings"
	"time"

	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

var (
	ErrInvalidWindow = errors.New("rates: start date must not be after end date")
	ErrInvalidPrice  = errors.New("rates: price must be non-negative with a currency")
)

type ID string

// Rule overrides the nightly price of one unit, or of every unit when UnitID is empty,
// for each night in the inclusive window [StartDate, EndDate].
type Rule struct {
	ID        ID
	Name      string
	UnitID    chalet.ID
	StartDate time.Time
	EndDate   time.Time
	Price     money.Money
	Priority  int
	Active    bool
	CreatedAt time.Time
}

func (r Rule) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" {
		return errors.New("rates: rule id required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() || daterange.Day(r.StartDate).After(daterange.Day(r.EndDate)) {
		return ErrInvalidWindow
	}
	if r.Price.Currency == "" || r.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Normalize truncates the window to calendar days, the granularity stores filter on.
func (r Rule) Normalize() Rule {
	r.StartDate = daterange.Day(r.StartDate)
	r.EndDate = daterange.Day(r.EndDate)
	return r
}

// Global reports whether the rule applies to every unit.
func (r Rule) Global() bool {
	return r.UnitID == ""
}

// WindowDays is the length of the validity window, EndDate - StartDate, in days.
func (r Rule) WindowDays() int {
	return daterange.DaysBetween(r.StartDate, r.EndDate)
}

// Covers reports whether the inclusive window contains the calendar date.
func (r Rule) Covers(date time.Time) bool {
	d := daterange.Day(date)
	return !d.Before(daterange.Day(r.StartDate)) && !d.After(daterange.Day(r.EndDate))
}

// AppliesTo reports whether the rule is a candidate for the unit on the date.
func (r Rule) AppliesTo(unitID chalet.ID, date time.Time) bool {
	if !r.Active {
		return false
	}
	if !r.Global() && r.UnitID != unitID {
		return false
	}
	return r.Covers(date)
}
