package daterange

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, in, out string) DateRange {
	t.Helper()
	dr, err := Parse(in, out)
	if err != nil {
		t.Fatalf("Parse(%s, %s): %v", in, out, err)
	}
	return dr
}

func TestNewRejectsEmptyAndInvertedRanges(t *testing.T) {
	if _, err := Parse("2025-01-02", "2025-01-02"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("same-day range error = %v, want ErrInvalidRange", err)
	}
	if _, err := Parse("2025-01-03", "2025-01-02"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("inverted range error = %v, want ErrInvalidRange", err)
	}
	if _, err := Parse("2025-13-01", "2025-01-02"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("bad date error = %v, want ErrInvalidDate", err)
	}
}

func TestNewTruncatesToCalendarDays(t *testing.T) {
	in := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	out := time.Date(2025, 1, 3, 11, 0, 0, 0, time.UTC)
	dr, err := New(in, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dr.Nights() != 2 {
		t.Fatalf("Nights() = %d, want 2", dr.Nights())
	}
	if !dr.CheckIn.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("CheckIn not truncated: %v", dr.CheckIn)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := mustParse(t, "2025-01-10", "2025-01-15")
	cases := []struct {
		name    string
		other   DateRange
		overlap bool
	}{
		{"back to back after", mustParse(t, "2025-01-15", "2025-01-18"), false},
		{"back to back before", mustParse(t, "2025-01-05", "2025-01-10"), false},
		{"inside", mustParse(t, "2025-01-11", "2025-01-12"), true},
		{"straddles start", mustParse(t, "2025-01-08", "2025-01-11"), true},
		{"straddles end", mustParse(t, "2025-01-14", "2025-01-20"), true},
		{"covers", mustParse(t, "2025-01-01", "2025-01-31"), true},
		{"disjoint", mustParse(t, "2025-02-01", "2025-02-03"), false},
	}
	for _, tc := range cases {
		if got := base.Overlaps(tc.other); got != tc.overlap {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.overlap)
		}
		if got := tc.other.Overlaps(base); got != tc.overlap {
			t.Fatalf("%s (reversed): Overlaps = %v, want %v", tc.name, got, tc.overlap)
		}
	}
}

func TestDatesExcludesCheckout(t *testing.T) {
	dr := mustParse(t, "2024-12-30", "2025-01-02")
	dates := dr.Dates()
	if len(dates) != 3 {
		t.Fatalf("len(Dates()) = %d, want 3", len(dates))
	}
	want := []string{"2024-12-30", "2024-12-31", "2025-01-01"}
	for i, d := range dates {
		if d.Format(Layout) != want[i] {
			t.Fatalf("Dates()[%d] = %s, want %s", i, d.Format(Layout), want[i])
		}
	}
	if dr.ContainsDate(dr.CheckOut) {
		t.Fatalf("checkout date must not be part of the stay")
	}
}
