package reservations_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"resort/internal/app/reservations"
	"resort/internal/app/uow"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
	"resort/internal/infra/storage/memory"
)

func usd(major int64) money.Money { return money.Must(major*100, "USD") }

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", raw, err)
	}
	return d
}

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("daterange.Parse: %v", err)
	}
	return dr
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	pine, err := chalet.New(chalet.Params{ID: "pine", Name: "Pine", Capacity: 4, BasePrice: usd(100), WeekendPrice: usd(120), Active: true})
	if err != nil {
		t.Fatalf("chalet.New: %v", err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(store.PutChalet(ctx, pine))
	must(store.PutRateRule(ctx, rates.Rule{ID: "season", StartDate: day(t, "2025-01-01"), EndDate: day(t, "2025-01-31"), Price: usd(150), Priority: 1, Active: true}))
	must(store.PutRateRule(ctx, rates.Rule{ID: "holiday", StartDate: day(t, "2025-01-01"), EndDate: day(t, "2025-01-02"), Price: usd(200), Priority: 1, Active: true}))
	must(store.PutAddOn(ctx, addons.AddOn{ID: "breakfast", Name: "Breakfast", Price: usd(15), Mode: addons.PerNight, Active: true}))
	must(store.PutAddOn(ctx, addons.AddOn{ID: "cleaning", Name: "Cleaning", Price: usd(50), Mode: addons.OneTime, Active: true}))
	must(store.PutSettings(ctx, settings.Default()))
	return store
}

func newManager(factory uow.UoWFactory) *reservations.Manager {
	m := reservations.NewManager(factory, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Now = func() time.Time { return time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func request(t *testing.T, in, out string, guests int) reservations.CreateRequest {
	return reservations.CreateRequest{UnitID: "pine", GuestID: "guest-1", Range: stay(t, in, out), Guests: guests}
}

func TestCreateBookingPricesHolidayNight(t *testing.T) {
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))

	b, err := m.CreateBooking(context.Background(), request(t, "2025-01-01", "2025-01-02", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != booking.StatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if b.TotalAmount != usd(200) || b.DepositAmount != usd(60) {
		t.Fatalf("total %s deposit %s, want 200.00 and 60.00", b.TotalAmount, b.DepositAmount)
	}
	if b.Nights[0].RuleID != "holiday" {
		t.Fatalf("night governed by %q, want holiday", b.Nights[0].RuleID)
	}
	if b.Version != 1 {
		t.Fatalf("version = %d, want 1", b.Version)
	}
	records := store.OutboxRecords()
	if len(records) != 1 || records[0].Name != "booking.requested" || records[0].Aggregate != string(b.ID) {
		t.Fatalf("unexpected outbox contents: %+v", records)
	}
}

func TestCreateBookingStoresAddOnRows(t *testing.T) {
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))
	req := request(t, "2025-02-03", "2025-02-06", 2)
	req.AddOns = []addons.Request{{AddOnID: "breakfast", Quantity: 1}, {AddOnID: "cleaning", Quantity: 1}, {AddOnID: "breakfast", Quantity: 1}}

	b, err := m.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.AddOnAmount != usd(140) {
		t.Fatalf("add-on amount = %s, want 140.00", b.AddOnAmount)
	}
	rows := store.AddOnLines(b.ID)
	if len(rows) != 2 || rows[0].BookingID != string(b.ID) || rows[0].Quantity != 2 {
		t.Fatalf("unexpected add-on rows: %+v", rows)
	}

	req = request(t, "2025-02-10", "2025-02-11", 1)
	req.AddOns = []addons.Request{{AddOnID: "spa", Quantity: 1}}
	if _, err := m.CreateBooking(context.Background(), req); !errors.Is(err, addons.ErrNotFound) {
		t.Fatalf("expected addons.ErrNotFound, got %v", err)
	}
}

func TestCreateBookingGuestBoundary(t *testing.T) {
	m := newManager(memory.NewUoWFactory(seededStore(t), true))
	ctx := context.Background()

	for _, guests := range []int{0, 5} {
		if _, err := m.CreateBooking(ctx, request(t, "2025-03-03", "2025-03-04", guests)); !errors.Is(err, booking.ErrInvalidGuestCount) {
			t.Fatalf("%d guests: expected ErrInvalidGuestCount, got %v", guests, err)
		}
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-03-03", "2025-03-04", 4)); err != nil {
		t.Fatalf("4 guests at capacity 4: %v", err)
	}
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	m := newManager(memory.NewUoWFactory(seededStore(t), true))
	ctx := context.Background()

	req := request(t, "2025-03-03", "2025-03-04", 1)
	req.Range = daterange.DateRange{CheckIn: day(t, "2025-03-04"), CheckOut: day(t, "2025-03-04")}
	if _, err := m.CreateBooking(ctx, req); !errors.Is(err, booking.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	req = request(t, "2025-03-03", "2025-03-04", 1)
	req.UnitID = "birch"
	if _, err := m.CreateBooking(ctx, req); !errors.Is(err, booking.ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}

	req = request(t, "2025-03-03", "2025-03-04", 1)
	req.Discount = usd(101)
	if _, err := m.CreateBooking(ctx, req); !errors.Is(err, pricing.ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
}

func TestBackToBackStaysAndOverlap(t *testing.T) {
	m := newManager(memory.NewUoWFactory(seededStore(t), true))
	ctx := context.Background()

	first, err := m.CreateBooking(ctx, request(t, "2025-01-10", "2025-01-12", 2))
	if err != nil {
		t.Fatalf("first stay: %v", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-01-12", "2025-01-14", 2)); err != nil {
		t.Fatalf("back-to-back stay should be accepted: %v", err)
	}
	_, err = m.CreateBooking(ctx, request(t, "2025-01-11", "2025-01-13", 2))
	var unavailable *booking.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if len(unavailable.Conflicts) != 2 {
		t.Fatalf("conflicts = %v, want both stays", unavailable.Conflicts)
	}
	if !errors.Is(err, booking.ErrUnavailable) {
		t.Fatal("UnavailableError should match ErrUnavailable")
	}

	if _, err := m.Cancel(ctx, first.ID, "plans changed"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-01-10", "2025-01-12", 1)); err != nil {
		t.Fatalf("cancelled nights should be bookable again: %v", err)
	}
}

// gatedFactory holds every commit until n units reach it, so concurrent creates all pass
// their availability check before any of them commits.
type gatedFactory struct {
	uow.UoWFactory
	arrived chan struct{}
	release chan struct{}
}

func newGatedFactory(inner uow.UoWFactory, n int) *gatedFactory {
	g := &gatedFactory{UoWFactory: inner, arrived: make(chan struct{}, n), release: make(chan struct{})}
	go func() {
		defer close(g.release)
		timeout := time.After(2 * time.Second)
		for i := 0; i < n; i++ {
			select {
			case <-g.arrived:
			case <-timeout:
				return
			}
		}
	}()
	return g
}

func (g *gatedFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := g.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &gatedUnit{UnitOfWork: unit, gate: g}, nil
}

type gatedUnit struct {
	uow.UnitOfWork
	gate *gatedFactory
}

func (u *gatedUnit) Commit(ctx context.Context) error {
	select {
	case u.gate.arrived <- struct{}{}:
	default:
	}
	<-u.gate.release
	return u.UnitOfWork.Commit(ctx)
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	cases := []struct {
		name    string
		factory func(*memory.Store) uow.UoWFactory
	}{
		{"unit lock", func(s *memory.Store) uow.UoWFactory { return memory.NewUoWFactory(s, true) }},
		{"commit constraint", func(s *memory.Store) uow.UoWFactory { return newGatedFactory(memory.NewUoWFactory(s, false), 2) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore(t)
			m := newManager(tc.factory(store))
			req := request(t, "2025-01-20", "2025-01-23", 2)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = m.CreateBooking(context.Background(), req)
				}(i)
			}
			wg.Wait()

			success, unavailable := 0, 0
			for _, err := range errs {
				switch {
				case err == nil:
					success++
				case errors.Is(err, booking.ErrUnavailable):
					unavailable++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if success != 1 || unavailable != 1 {
				t.Fatalf("success=%d unavailable=%d, want 1 and 1", success, unavailable)
			}
			if got := len(store.Bookings()); got != 1 {
				t.Fatalf("stored %d bookings, want 1", got)
			}
		})
	}
}

func TestLifecycleThroughManager(t *testing.T) {
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))
	ctx := context.Background()

	b, err := m.CreateBooking(ctx, request(t, "2025-02-03", "2025-02-05", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := m.CheckIn(ctx, b.ID); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("check-in of pending booking: expected ErrInvalidTransition, got %v", err)
	}
	for _, step := range []func(context.Context, booking.ID) (*booking.Booking, error){m.Confirm, m.CheckIn, m.CheckOut} {
		if b, err = step(ctx, b.ID); err != nil {
			t.Fatalf("transition: %v", err)
		}
	}
	if b.Status != booking.StatusCheckedOut || b.Version != 4 {
		t.Fatalf("status %s version %d, want checked_out and 4", b.Status, b.Version)
	}
	names := []string{}
	for _, rec := range store.OutboxRecords() {
		names = append(names, rec.Name)
	}
	want := []string{"booking.requested", "booking.confirmed", "booking.checked_in", "booking.checked_out"}
	if len(names) != len(want) {
		t.Fatalf("outbox = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("outbox = %v, want %v", names, want)
		}
	}

	if _, err := m.Confirm(ctx, "missing"); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestNoShowKeepsNightsBlocked(t *testing.T) {
	m := newManager(memory.NewUoWFactory(seededStore(t), true))
	ctx := context.Background()
	b, err := m.CreateBooking(ctx, request(t, "2025-02-03", "2025-02-05", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := m.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := m.MarkNoShow(ctx, b.ID); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-02-04", "2025-02-05", 1)); !errors.Is(err, booking.ErrUnavailable) {
		t.Fatalf("no-show should still block its nights, got %v", err)
	}
}

func TestRescheduleExcludesOwnNights(t *testing.T) {
	m := newManager(memory.NewUoWFactory(seededStore(t), true))
	ctx := context.Background()

	moving, err := m.CreateBooking(ctx, request(t, "2025-01-10", "2025-01-12", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-01-14", "2025-01-16", 2)); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	moved, err := m.Reschedule(ctx, moving.ID, stay(t, "2025-01-11", "2025-01-13"))
	if err != nil {
		t.Fatalf("Reschedule onto own nights: %v", err)
	}
	if moved.TotalAmount != usd(300) || moved.DepositAmount != usd(90) {
		t.Fatalf("re-priced total %s deposit %s, want 300.00 and 90.00", moved.TotalAmount, moved.DepositAmount)
	}

	if _, err := m.Reschedule(ctx, moving.ID, stay(t, "2025-01-13", "2025-01-15")); !errors.Is(err, booking.ErrUnavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	current, err := m.Booking(ctx, moving.ID)
	if err != nil {
		t.Fatalf("Booking: %v", err)
	}
	if current.Range != moved.Range {
		t.Fatalf("failed reschedule changed range to %s", current.Range)
	}
}

func TestQuoteAndAvailabilityDoNotPersist(t *testing.T) {
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))
	ctx := context.Background()

	est, err := m.Quote(ctx, reservations.QuoteRequest{UnitID: "pine", Range: stay(t, "2025-01-01", "2025-01-03"), Guests: 2})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if est.Total != usd(400) || est.Deposit != usd(120) || !est.Available {
		t.Fatalf("unexpected estimate: total %s deposit %s available %v", est.Total, est.Deposit, est.Available)
	}
	if len(store.Bookings()) != 0 || len(store.OutboxRecords()) != 0 {
		t.Fatal("quote must not persist anything")
	}

	dr := stay(t, "2025-01-05", "2025-01-07")
	first, err := m.CheckAvailability(ctx, "pine", dr, "")
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	second, _ := m.CheckAvailability(ctx, "pine", dr, "")
	if !first.Available || first.Available != second.Available {
		t.Fatalf("availability checks disagree: %+v %+v", first, second)
	}
}

func TestCancelledContextCommitsNothing(t *testing.T) {
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.CreateBooking(ctx, request(t, "2025-03-03", "2025-03-05", 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.Bookings()) != 0 {
		t.Fatal("booking stored despite cancelled context")
	}
}

func TestRuleWindowWithTimeOfDayStillCoversItsNight(t *testing.T) {
	store := seededStore(t)
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	promo := rates.Rule{ID: "promo", StartDate: noon, EndDate: noon, Price: usd(999), Priority: 9, Active: true}
	if err := store.PutRateRule(context.Background(), promo); err != nil {
		t.Fatalf("PutRateRule: %v", err)
	}
	m := newManager(memory.NewUoWFactory(store, true))

	b, err := m.CreateBooking(context.Background(), request(t, "2025-03-10", "2025-03-11", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.TotalAmount != usd(999) || b.Nights[0].RuleID != "promo" {
		t.Fatalf("total %s from rule %q, want 999.00 from promo", b.TotalAmount, b.Nights[0].RuleID)
	}
}

func TestSoftDeletedBookingFreesItsNights(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	m := newManager(memory.NewUoWFactory(store, true))

	first, err := m.CreateBooking(ctx, request(t, "2025-03-01", "2025-03-03", 2))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-03-01", "2025-03-03", 2)); !errors.Is(err, booking.ErrUnavailable) {
		t.Fatalf("second create err = %v, want ErrUnavailable", err)
	}
	if err := store.DeleteBooking(ctx, first.ID, time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("DeleteBooking: %v", err)
	}

	avail, err := m.CheckAvailability(ctx, "pine", stay(t, "2025-03-01", "2025-03-03"), "")
	if err != nil || !avail.Available {
		t.Fatalf("availability after delete = %+v, %v", avail, err)
	}
	if _, err := m.Booking(ctx, first.ID); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("deleted booking lookup err = %v, want ErrBookingNotFound", err)
	}
	if _, err := m.CreateBooking(ctx, request(t, "2025-03-01", "2025-03-03", 2)); err != nil {
		t.Fatalf("re-create after delete: %v", err)
	}
}
