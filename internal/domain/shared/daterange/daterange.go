package daterange

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// Layout is the wire format of calendar dates.
const Layout = "2006-01-02"

const day = 24 * time.Hour

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD value.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / day)
}

// DateRange represents a half-open interval of nights [CheckIn, CheckOut).
// Both ends are calendar dates at midnight UTC.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return DaysBetween(dr.CheckIn, dr.CheckOut)
}

// Dates lists every night of the stay in order; the checkout date is excluded.
func (dr DateRange) Dates() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := Day(dr.CheckIn); d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Overlaps follows half-open semantics: a stay ending on day X does not clash with one starting on X.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", dr.CheckIn.Format(Layout), dr.CheckOut.Format(Layout))
}
