package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"resort/internal/app/outbox"
	"resort/internal/app/uow"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

// conflictAttempts bounds how often a booking write is attempted when the store
// reports a concurrent claim on the same nights.
const conflictAttempts = 2

// CreateRequest is a guest's request for a stay.
type CreateRequest struct {
	UnitID   chalet.ID
	GuestID  string
	Range    daterange.DateRange
	Guests   int
	AddOns   []addons.Request
	Discount money.Money
}

// QuoteRequest prices a stay without holding it.
type QuoteRequest struct {
	UnitID   chalet.ID
	Range    daterange.DateRange
	Guests   int
	AddOns   []addons.Request
	Discount money.Money
}

// Estimate is a priced stay preview.
type Estimate struct {
	Quote     pricing.Quote
	Discount  money.Money
	Total     money.Money
	Deposit   money.Money
	Available bool
	Conflicts []booking.ID
}

type Availability struct {
	UnitID    chalet.ID
	Range     daterange.DateRange
	Available bool
	Conflicts []booking.ID
}

// Manager runs the reservation lifecycle. It holds no locks of its own: every write goes
// through a unit of work whose factory either serializes per unit or enforces a store
// constraint that surfaces as booking.ErrBookingConflict.
type Manager struct {
	Factory uow.UoWFactory
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	// Workers is handed to the price calculator; values above one price nights concurrently.
	Workers int
	Now     func() time.Time
	NewID   func() string
}

func NewManager(factory uow.UoWFactory, logger *slog.Logger) *Manager {
	return &Manager{Factory: factory, Encoder: outbox.JSONEventEncoder{}, Logger: logger}
}

// CreateBooking validates, prices and persists a pending booking. The availability check
// and the insert share one unit of work; a store conflict triggers one full retry so the
// caller receives an UnavailableError naming the winner.
func (m *Manager) CreateBooking(ctx context.Context, req CreateRequest) (*booking.Booking, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		var created *booking.Booking
		err := uow.Run(ctx, m.Factory, uow.TxOptions{LockUnit: req.UnitID}, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := m.create(ctx, unit, req)
			if err != nil {
				return err
			}
			created = b
			return nil
		})
		if err == nil {
			m.logger().InfoContext(ctx, "booking created",
				slog.String("booking_id", string(created.ID)),
				slog.String("unit_id", string(created.UnitID)),
				slog.String("range", created.Range.String()),
				slog.String("total", created.TotalAmount.String()))
			return created, nil
		}
		if !errors.Is(err, booking.ErrBookingConflict) {
			return nil, err
		}
		if attempt >= conflictAttempts {
			return nil, &booking.UnavailableError{UnitID: req.UnitID, Range: req.Range}
		}
		m.logger().WarnContext(ctx, "booking conflict, retrying",
			slog.String("unit_id", string(req.UnitID)),
			slog.String("range", req.Range.String()),
			slog.Int("attempt", attempt))
	}
}

func (m *Manager) create(ctx context.Context, unit uow.UnitOfWork, req CreateRequest) (*booking.Booking, error) {
	store := unit.Reservations()
	ch, err := m.bookableUnit(ctx, store, req.UnitID)
	if err != nil {
		return nil, err
	}
	if err := booking.ValidateGuests(req.Guests, ch.Capacity); err != nil {
		return nil, err
	}
	if err := m.ensureAvailable(ctx, store, req.UnitID, req.Range, ""); err != nil {
		return nil, err
	}
	selections, err := m.selections(ctx, store, req.AddOns)
	if err != nil {
		return nil, err
	}
	priced, err := m.price(ctx, store, ch, req.Range, selections, req.Discount)
	if err != nil {
		return nil, err
	}
	b, err := booking.New(booking.CreateParams{
		ID:        booking.ID(m.newID()),
		UnitID:    ch.ID,
		GuestID:   req.GuestID,
		Range:     req.Range,
		Guests:    req.Guests,
		Capacity:  ch.Capacity,
		Quote:     priced.Quote,
		Discount:  req.Discount,
		Deposit:   priced.Deposit,
		CreatedAt: m.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := store.InsertBooking(ctx, b, b.AddOns); err != nil {
		return nil, err
	}
	return b, m.recordEvents(ctx, unit, b)
}

// Quote prices a stay and reports whether it is currently free, without persisting anything.
func (m *Manager) Quote(ctx context.Context, req QuoteRequest) (Estimate, error) {
	if err := req.Range.Validate(); err != nil {
		return Estimate{}, err
	}
	var est Estimate
	err := uow.Run(ctx, m.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		store := unit.Reservations()
		ch, err := m.bookableUnit(ctx, store, req.UnitID)
		if err != nil {
			return err
		}
		if req.Guests != 0 {
			if err := booking.ValidateGuests(req.Guests, ch.Capacity); err != nil {
				return err
			}
		}
		selections, err := m.selections(ctx, store, req.AddOns)
		if err != nil {
			return err
		}
		if est, err = m.price(ctx, store, ch, req.Range, selections, req.Discount); err != nil {
			return err
		}
		est.Conflicts, err = booking.Conflicts(ctx, store, req.UnitID, req.Range, "")
		if err != nil {
			return err
		}
		est.Available = len(est.Conflicts) == 0
		return nil
	})
	return est, err
}

// CheckAvailability reports whether the unit is free for dr, ignoring exclude.
func (m *Manager) CheckAvailability(ctx context.Context, unitID chalet.ID, dr daterange.DateRange, exclude booking.ID) (Availability, error) {
	if err := dr.Validate(); err != nil {
		return Availability{}, err
	}
	out := Availability{UnitID: unitID, Range: dr}
	err := uow.Run(ctx, m.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		store := unit.Reservations()
		if _, err := store.UnitByID(ctx, unitID); err != nil {
			return err
		}
		conflicts, err := booking.Conflicts(ctx, store, unitID, dr, exclude)
		if err != nil {
			return err
		}
		out.Conflicts = conflicts
		out.Available = len(conflicts) == 0
		return nil
	})
	return out, err
}

func (m *Manager) Booking(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	var out *booking.Booking
	err := uow.Run(ctx, m.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Reservations().BookingByID(ctx, id)
		out = b
		return err
	})
	return out, err
}

func (m *Manager) Confirm(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return m.transition(ctx, id, "confirm", func(b *booking.Booking, now time.Time) error { return b.Confirm(now) })
}

func (m *Manager) CheckIn(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return m.transition(ctx, id, "check_in", func(b *booking.Booking, now time.Time) error { return b.CheckIn(now) })
}

func (m *Manager) CheckOut(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return m.transition(ctx, id, "check_out", func(b *booking.Booking, now time.Time) error { return b.CheckOut(now) })
}

func (m *Manager) Cancel(ctx context.Context, id booking.ID, reason string) (*booking.Booking, error) {
	return m.transition(ctx, id, "cancel", func(b *booking.Booking, now time.Time) error { return b.Cancel(reason, now) })
}

func (m *Manager) MarkNoShow(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return m.transition(ctx, id, "no_show", func(b *booking.Booking, now time.Time) error { return b.MarkNoShow(now) })
}

func (m *Manager) transition(ctx context.Context, id booking.ID, action string, apply func(*booking.Booking, time.Time) error) (*booking.Booking, error) {
	var out *booking.Booking
	err := uow.Run(ctx, m.Factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		store := unit.Reservations()
		b, err := store.BookingByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(b, m.now()); err != nil {
			return err
		}
		if err := store.UpdateBooking(ctx, b); err != nil {
			return err
		}
		out = b
		return m.recordEvents(ctx, unit, b)
	})
	if err != nil {
		return nil, err
	}
	m.logger().InfoContext(ctx, "booking "+action,
		slog.String("booking_id", string(out.ID)),
		slog.String("status", string(out.Status)))
	return out, nil
}

// Reschedule moves a pending or confirmed booking to dr. The booking's own nights do not
// count against it; add-on lines keep their snapshotted unit prices.
func (m *Manager) Reschedule(ctx context.Context, id booking.ID, dr daterange.DateRange) (*booking.Booking, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	current, err := m.Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		var moved *booking.Booking
		err := uow.Run(ctx, m.Factory, uow.TxOptions{LockUnit: current.UnitID}, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := m.reschedule(ctx, unit, id, dr)
			moved = b
			return err
		})
		if err == nil {
			m.logger().InfoContext(ctx, "booking rescheduled",
				slog.String("booking_id", string(moved.ID)),
				slog.String("range", moved.Range.String()))
			return moved, nil
		}
		if !errors.Is(err, booking.ErrBookingConflict) {
			return nil, err
		}
		if attempt >= conflictAttempts {
			return nil, &booking.UnavailableError{UnitID: current.UnitID, Range: dr}
		}
		m.logger().WarnContext(ctx, "reschedule conflict, retrying",
			slog.String("booking_id", string(id)),
			slog.Int("attempt", attempt))
	}
}

func (m *Manager) reschedule(ctx context.Context, unit uow.UnitOfWork, id booking.ID, dr daterange.DateRange) (*booking.Booking, error) {
	store := unit.Reservations()
	b, err := store.BookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot reschedule %s booking", booking.ErrInvalidTransition, b.Status)
	}
	ch, err := m.bookableUnit(ctx, store, b.UnitID)
	if err != nil {
		return nil, err
	}
	if err := m.ensureAvailable(ctx, store, b.UnitID, dr, b.ID); err != nil {
		return nil, err
	}
	selections := make([]pricing.Selection, 0, len(b.AddOns))
	for _, line := range b.AddOns {
		selections = append(selections, pricing.Selection{
			AddOn:    addons.AddOn{ID: line.AddOnID, Name: line.Name, Price: line.UnitPrice, Mode: line.Mode, Active: true},
			Quantity: line.Quantity,
		})
	}
	discount := b.DiscountAmount
	if discount.IsZero() {
		discount = money.Money{}
	}
	priced, err := m.price(ctx, store, ch, dr, selections, discount)
	if err != nil {
		return nil, err
	}
	if err := b.Reschedule(dr, priced.Quote, priced.Deposit, m.now()); err != nil {
		return nil, err
	}
	if err := store.UpdateBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, m.recordEvents(ctx, unit, b)
}

func (m *Manager) bookableUnit(ctx context.Context, store booking.Store, id chalet.ID) (*chalet.Chalet, error) {
	ch, err := store.UnitByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.Bookable() {
		return nil, fmt.Errorf("%w: %s", booking.ErrUnitNotFound, id)
	}
	return ch, nil
}

func (m *Manager) ensureAvailable(ctx context.Context, store booking.Store, unitID chalet.ID, dr daterange.DateRange, exclude booking.ID) error {
	conflicts, err := booking.Conflicts(ctx, store, unitID, dr, exclude)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &booking.UnavailableError{UnitID: unitID, Range: dr, Conflicts: conflicts}
	}
	return nil
}

// selections resolves add-on requests against the catalog, merging repeated ids.
func (m *Manager) selections(ctx context.Context, store booking.Store, reqs []addons.Request) ([]pricing.Selection, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	order := make([]addons.ID, 0, len(reqs))
	quantities := make(map[addons.ID]int, len(reqs))
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", addons.ErrInvalidQuantity, r.AddOnID)
		}
		if _, seen := quantities[r.AddOnID]; !seen {
			order = append(order, r.AddOnID)
		}
		quantities[r.AddOnID] += r.Quantity
	}
	catalog, err := store.AddOnsByIDs(ctx, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[addons.ID]addons.AddOn, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	out := make([]pricing.Selection, 0, len(order))
	for _, id := range order {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", addons.ErrNotFound, id)
		}
		out = append(out, pricing.Selection{AddOn: a, Quantity: quantities[id]})
	}
	return out, nil
}

func (m *Manager) price(ctx context.Context, store booking.Store, ch *chalet.Chalet, dr daterange.DateRange, selections []pricing.Selection, discount money.Money) (Estimate, error) {
	rules, err := store.ActiveRateRules(ctx, ch.ID, dr)
	if err != nil {
		return Estimate{}, err
	}
	cfg, err := store.Settings(ctx)
	if err != nil {
		return Estimate{}, err
	}
	calc := &pricing.Calculator{Settings: cfg, Workers: m.Workers}
	quote, err := calc.ComputeStayTotal(ch, dr, rates.NewResolver(rules), selections)
	if err != nil {
		return Estimate{}, err
	}
	m.logAmbiguities(ctx, quote.Ambiguities)
	total, err := quote.Total(discount)
	if err != nil {
		return Estimate{}, err
	}
	deposit, err := pricing.ComputeDeposit(total, m.depositPolicy(cfg))
	if err != nil {
		return Estimate{}, err
	}
	if discount.Currency == "" {
		discount = money.Zero(total.Currency)
	}
	return Estimate{Quote: quote, Discount: discount, Total: total, Deposit: deposit}, nil
}

func (m *Manager) depositPolicy(cfg settings.Settings) settings.DepositPolicy {
	if cfg.Deposit.Type == "" {
		return settings.Default().Deposit
	}
	return cfg.Deposit
}

func (m *Manager) logAmbiguities(ctx context.Context, found []*rates.AmbiguityError) {
	for _, amb := range found {
		ids := make([]string, len(amb.RuleIDs))
		for i, id := range amb.RuleIDs {
			ids[i] = string(id)
		}
		m.logger().WarnContext(ctx, "ambiguous rate rules",
			slog.String("unit_id", string(amb.UnitID)),
			slog.String("date", amb.Date.Format(daterange.Layout)),
			slog.String("winner", string(amb.Winner)),
			slog.Any("tied", ids))
	}
}

func (m *Manager) recordEvents(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking) error {
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), m.Encoder, b.PendingEvents()); err != nil {
		return err
	}
	b.ClearEvents()
	return nil
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Manager) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}
