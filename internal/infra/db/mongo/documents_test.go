package mongo

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

func TestNightDocumentsClaimEachNight(t *testing.T) {
	dr, err := daterange.Parse("2025-02-27", "2025-03-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b := &booking.Booking{ID: "b-1", UnitID: "pine", Range: dr}

	docs := nightDocuments(b)
	want := []string{"pine:2025-02-27", "pine:2025-02-28", "pine:2025-03-01"}
	if len(docs) != len(want) {
		t.Fatalf("expected %d nights, got %d", len(want), len(docs))
	}
	for i, raw := range docs {
		doc := raw.(nightDocument)
		if doc.ID != want[i] {
			t.Fatalf("night %d: expected %s, got %s", i, want[i], doc.ID)
		}
		if doc.BookingID != "b-1" || doc.UnitID != "pine" {
			t.Fatalf("night %d has wrong owner: %+v", i, doc)
		}
	}
}

func TestBackToBackStaysDoNotShareNights(t *testing.T) {
	first, _ := daterange.Parse("2025-01-01", "2025-01-03")
	second, _ := daterange.Parse("2025-01-03", "2025-01-05")
	seen := map[string]bool{}
	for _, dr := range []daterange.DateRange{first, second} {
		for _, raw := range nightDocuments(&booking.Booking{ID: "b", UnitID: "pine", Range: dr}) {
			id := raw.(nightDocument).ID
			if seen[id] {
				t.Fatalf("night %s claimed twice", id)
			}
			seen[id] = true
		}
	}
}

func TestBookingDocumentKeepsSnapshot(t *testing.T) {
	dr, _ := daterange.Parse("2025-01-01", "2025-01-03")
	usd := func(v int64) money.Money { return money.Must(v, "USD") }
	b := &booking.Booking{
		ID:      "b-1",
		UnitID:  "pine",
		GuestID: "g-1",
		Range:   dr,
		Guests:  2,
		Nights: []pricing.NightRate{
			{Date: dr.CheckIn, Rate: usd(20000), Source: pricing.SourceRule, RuleID: "holiday"},
			{Date: dr.CheckIn.AddDate(0, 0, 1), Rate: usd(10000), Source: pricing.SourceBase},
		},
		BaseAmount:     usd(30000),
		AddOnAmount:    usd(0),
		DiscountAmount: usd(0),
		DepositAmount:  usd(9000),
		TotalAmount:    usd(30000),
		Status:         booking.StatusConfirmed,
		CreatedAt:      time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC),
		Version:        3,
	}
	lines := []addons.Line{{BookingID: "b-1", AddOnID: "breakfast", Mode: addons.PerNight, Quantity: 2}}

	got := newBookingDocument(b).toDomain(lines)
	if got.Range != b.Range || got.TotalAmount != b.TotalAmount || got.Version != 3 {
		t.Fatalf("unexpected booking: %+v", got)
	}
	if got.Nights[0].RuleID != "holiday" || got.Nights[1].Source != pricing.SourceBase {
		t.Fatalf("night provenance lost: %+v", got.Nights)
	}
	if len(got.AddOns) != 1 || got.AddOns[0].AddOnID != "breakfast" {
		t.Fatalf("add-on lines lost: %+v", got.AddOns)
	}
}

func TestSettingsDocumentKeepsWeekendDays(t *testing.T) {
	in := settings.Default()
	in.WeekendDays = []time.Weekday{time.Saturday, time.Sunday}
	out := newSettingsDocument(in).toDomain()
	if len(out.WeekendDays) != 2 || out.WeekendDays[0] != time.Saturday || out.WeekendDays[1] != time.Sunday {
		t.Fatalf("unexpected weekend days: %v", out.WeekendDays)
	}
	if out.Deposit.Percentage != 30 || out.Deposit.Type != settings.DepositPercentage {
		t.Fatalf("unexpected deposit policy: %+v", out.Deposit)
	}
}

func TestMapWriteErrorDetectsConflicts(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	if err := mapWriteError(dup); !errors.Is(err, booking.ErrBookingConflict) {
		t.Fatalf("duplicate key should map to conflict, got %v", err)
	}
	conflict := mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict"}
	if err := mapWriteError(conflict); !errors.Is(err, booking.ErrBookingConflict) {
		t.Fatalf("write conflict should map to conflict, got %v", err)
	}
	transient := mongo.CommandError{Code: 251, Labels: []string{transientTxnLabel}}
	if err := mapWriteError(transient); !errors.Is(err, booking.ErrBookingConflict) {
		t.Fatalf("transient transaction error should map to conflict, got %v", err)
	}
	other := errors.New("network down")
	if err := mapWriteError(other); !errors.Is(err, other) || errors.Is(err, booking.ErrBookingConflict) {
		t.Fatalf("unrelated errors must pass through, got %v", err)
	}
	if mapWriteError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestRateRuleDocumentStoresCalendarDays(t *testing.T) {
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	doc := newRateRuleDocument(rates.Rule{ID: "promo", StartDate: noon, EndDate: noon, Price: money.Must(99900, "USD"), Active: true})
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !doc.StartDate.Equal(want) || !doc.EndDate.Equal(want) {
		t.Fatalf("window = %s..%s, want %s", doc.StartDate, doc.EndDate, want)
	}
}
