package money

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"150", 15000},
		{"150.5", 15050},
		{"150.05", 15005},
		{"0.99", 99},
		{"-12.30", -1230},
	}
	for _, tc := range cases {
		got, err := Parse(tc.raw, "usd")
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", tc.raw, err)
		}
		if got.Amount != tc.want || got.Currency != "USD" {
			t.Fatalf("Parse(%q) = %v, want %d USD", tc.raw, got, tc.want)
		}
	}

	for _, bad := range []string{"", "1.234", "abc", ".5", "1.", "--5", "+5", "1.+5", "1.-5", "-"} {
		if _, err := Parse(bad, "USD"); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Parse(%q) error = %v, want ErrInvalidAmount", bad, err)
		}
	}
}

func TestPercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount  int64
		percent int64
		want    int64
	}{
		{20000, 30, 6000},
		{1001, 50, 501},
		{1003, 10, 100},
		{1005, 10, 101},
		{0, 30, 0},
	}
	for _, tc := range cases {
		got := Must(tc.amount, "USD").Percent(tc.percent)
		if got.Amount != tc.want {
			t.Fatalf("%d * %d%% = %d, want %d", tc.amount, tc.percent, got.Amount, tc.want)
		}
	}
}

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	_, err := Must(100, "USD").Add(Must(100, "EUR"))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := Must(100, "USD").Add(Money{Amount: 1}); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestMinAndDecimal(t *testing.T) {
	low, err := Must(50000, "USD").Min(Must(20000, "USD"))
	if err != nil {
		t.Fatalf("Min: %v", err)
	}
	if low.Decimal() != "200.00" {
		t.Fatalf("Decimal() = %s, want 200.00", low.Decimal())
	}
	if got := Must(-5, "USD").Decimal(); got != "-0.05" {
		t.Fatalf("Decimal() = %s, want -0.05", got)
	}
}
