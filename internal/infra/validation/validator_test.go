package validation

import (
	"context"
	"errors"
	"testing"

	bookinghandlers "resort/internal/app/handlers/booking"
)

func TestValidateAcceptsWellFormedCommand(t *testing.T) {
	cmd := bookinghandlers.CreateBookingCommand{
		UnitID:   "pine",
		GuestID:  "guest-1",
		CheckIn:  "2025-01-01",
		CheckOut: "2025-01-03",
		Guests:   2,
		AddOns:   []bookinghandlers.AddOnRequest{{AddOnID: "breakfast", Quantity: 2}},
		Discount: "10.50",
	}
	if err := New().Validate(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	cmd := bookinghandlers.CreateBookingCommand{
		UnitID:   "pine",
		CheckIn:  "01/01/2025",
		CheckOut: "2025-01-03",
		Guests:   0,
		AddOns:   []bookinghandlers.AddOnRequest{{AddOnID: "breakfast", Quantity: 0}},
	}
	err := New().Validate(context.Background(), cmd)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Rule
	}
	want := map[string]string{
		"GuestID":            "required",
		"CheckIn":            "datetime",
		"Guests":             "min",
		"AddOns[0].quantity": "min",
	}
	for field, rule := range want {
		if got[field] != rule {
			t.Fatalf("field %s: expected rule %q, got %q (all: %v)", field, rule, got[field], verr.Fields)
		}
	}
}

func TestValidateIgnoresNonStructs(t *testing.T) {
	if err := New().Validate(context.Background(), "plain"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
