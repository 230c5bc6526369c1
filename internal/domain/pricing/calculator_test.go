package pricing

import (
	"errors"
	"testing"
	"time"

	"resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

func usd(major int64) money.Money {
	return money.Must(major*100, "USD")
}

func testUnit(t *testing.T) *chalet.Chalet {
	t.Helper()
	c, err := chalet.New(chalet.Params{ID: "pine", Capacity: 4, BasePrice: usd(100), WeekendPrice: usd(120), Active: true})
	if err != nil {
		t.Fatalf("chalet.New: %v", err)
	}
	return c
}

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("daterange.Parse: %v", err)
	}
	return dr
}

func catalogRules(t *testing.T) *rates.Resolver {
	t.Helper()
	day := func(raw string) time.Time {
		d, _ := daterange.ParseDate(raw)
		return d
	}
	return rates.NewResolver([]rates.Rule{
		{ID: "season", StartDate: day("2025-01-01"), EndDate: day("2025-01-31"), Price: usd(150), Priority: 1, Active: true},
		{ID: "holiday", StartDate: day("2025-01-01"), EndDate: day("2025-01-02"), Price: usd(200), Priority: 1, Active: true},
	})
}

func TestHolidayNightOverridesSeason(t *testing.T) {
	calc := NewCalculator(settings.Default())
	quote, err := calc.ComputeStayTotal(testUnit(t), stay(t, "2025-01-01", "2025-01-02"), catalogRules(t), nil)
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	total, err := quote.Total(money.Money{})
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total.Amount != 20000 {
		t.Fatalf("total = %s, want 200.00", total.Decimal())
	}
	if quote.Nights[0].RuleID != "holiday" || quote.Nights[0].Source != SourceRule {
		t.Fatalf("night priced by %+v, want holiday rule", quote.Nights[0])
	}
}

func TestNightsSpanningRules(t *testing.T) {
	calc := NewCalculator(settings.Default())
	quote, err := calc.ComputeStayTotal(testUnit(t), stay(t, "2025-01-01", "2025-01-05"), catalogRules(t), nil)
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	if quote.BaseAmount.Amount != 70000 {
		t.Fatalf("base = %s, want 700.00 (200+200+150+150)", quote.BaseAmount.Decimal())
	}
	if len(quote.Nights) != 4 {
		t.Fatalf("priced %d nights, want 4", len(quote.Nights))
	}
}

func TestFallbackToBaseAndWeekendPrices(t *testing.T) {
	calc := NewCalculator(settings.Default())
	// Thursday, Friday and Saturday nights.
	quote, err := calc.ComputeStayTotal(testUnit(t), stay(t, "2025-02-06", "2025-02-09"), catalogRules(t), nil)
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	if quote.BaseAmount.Amount != 34000 {
		t.Fatalf("base = %s, want 340.00", quote.BaseAmount.Decimal())
	}
	want := []RateSource{SourceBase, SourceWeekend, SourceWeekend}
	for i, n := range quote.Nights {
		if n.Source != want[i] {
			t.Fatalf("night %d source = %s, want %s", i, n.Source, want[i])
		}
	}

	noWeekend := settings.Default()
	noWeekend.WeekendDays = []time.Weekday{}
	quote, err = NewCalculator(noWeekend).ComputeStayTotal(testUnit(t), stay(t, "2025-02-06", "2025-02-09"), nil, nil)
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	if quote.BaseAmount.Amount != 30000 {
		t.Fatalf("base without weekend days = %s, want 300.00", quote.BaseAmount.Decimal())
	}
}

func TestAddOnsPerNightAndOneTime(t *testing.T) {
	breakfast := addons.AddOn{ID: "breakfast", Price: usd(15), Mode: addons.PerNight, Active: true}
	cleaning := addons.AddOn{ID: "cleaning", Price: usd(50), Mode: addons.OneTime, Active: true}
	calc := NewCalculator(settings.Default())
	quote, err := calc.ComputeStayTotal(testUnit(t), stay(t, "2025-02-03", "2025-02-06"), nil, []Selection{
		{AddOn: breakfast, Quantity: 2},
		{AddOn: cleaning, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	if quote.AddOnAmount.Amount != 14000 {
		t.Fatalf("add-ons = %s, want 140.00 (15*2*3 + 50)", quote.AddOnAmount.Decimal())
	}
	if quote.AddOns[0].Subtotal.Amount != 9000 || quote.AddOns[0].UnitPrice.Amount != 1500 {
		t.Fatalf("breakfast line = %+v", quote.AddOns[0])
	}

	inactive := cleaning
	inactive.Active = false
	_, err = calc.ComputeStayTotal(testUnit(t), stay(t, "2025-02-03", "2025-02-06"), nil, []Selection{{AddOn: inactive, Quantity: 1}})
	if !errors.Is(err, addons.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestDiscountBounds(t *testing.T) {
	quote, err := NewCalculator(settings.Default()).ComputeStayTotal(testUnit(t), stay(t, "2025-02-03", "2025-02-04"), nil, nil)
	if err != nil {
		t.Fatalf("ComputeStayTotal: %v", err)
	}
	total, err := quote.Total(usd(30))
	if err != nil || total.Amount != 7000 {
		t.Fatalf("total after discount = %v (%v), want 70.00", total, err)
	}
	if _, err := quote.Total(usd(101)); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount for oversized discount, got %v", err)
	}
	if _, err := quote.Total(usd(-1)); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount for negative discount, got %v", err)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	seq := NewCalculator(settings.Default())
	par := &Calculator{Settings: settings.Default(), Workers: 4}
	dr := stay(t, "2024-12-20", "2025-01-10")
	a, err := seq.ComputeStayTotal(testUnit(t), dr, catalogRules(t), nil)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	b, err := par.ComputeStayTotal(testUnit(t), dr, catalogRules(t), nil)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if a.BaseAmount != b.BaseAmount || len(a.Nights) != len(b.Nights) {
		t.Fatalf("parallel quote %v differs from sequential %v", b.BaseAmount, a.BaseAmount)
	}
	for i := range a.Nights {
		if !a.Nights[i].Date.Equal(b.Nights[i].Date) || a.Nights[i].Rate != b.Nights[i].Rate {
			t.Fatalf("night %d differs: %+v vs %+v", i, a.Nights[i], b.Nights[i])
		}
	}
}

func TestRuleCurrencyMismatch(t *testing.T) {
	day, _ := daterange.ParseDate("2025-03-01")
	resolver := rates.NewResolver([]rates.Rule{{ID: "eur", StartDate: day, EndDate: day, Price: money.Must(100, "EUR"), Active: true}})
	_, err := NewCalculator(settings.Default()).ComputeStayTotal(testUnit(t), stay(t, "2025-03-01", "2025-03-02"), resolver, nil)
	if !errors.Is(err, money.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}
