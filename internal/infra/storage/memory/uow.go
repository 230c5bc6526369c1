package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
)

// UoWFactory hands out units of work over a Store. With LockUnits set, a unit begun with
// TxOptions.LockUnit holds that chalet exclusively until Commit or Rollback. Without it,
// Commit re-checks overlaps and reports booking.ErrBookingConflict, the way a unique
// constraint would.
type UoWFactory struct {
	Store     *Store
	LockUnits bool

	mu    sync.Mutex
	locks map[chalet.ID]chan struct{}
}

func NewUoWFactory(store *Store, lockUnits bool) *UoWFactory {
	return &UoWFactory{Store: store, LockUnits: lockUnits, locks: make(map[chalet.ID]chan struct{})}
}

func (f *UoWFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := &Unit{store: f.Store, readOnly: opts.ReadOnly, release: func() {}}
	if f.LockUnits && opts.LockUnit != "" && !opts.ReadOnly {
		release, err := f.acquire(ctx, opts.LockUnit)
		if err != nil {
			return nil, err
		}
		u.release = release
	}
	return u, nil
}

func (f *UoWFactory) acquire(ctx context.Context, id chalet.ID) (func(), error) {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = make(map[chalet.ID]chan struct{})
	}
	sem, ok := f.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		f.locks[id] = sem
	}
	f.mu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pendingUpdate struct {
	next     *booking.Booking
	caller   *booking.Booking
	expected int64
}

type pendingInsert struct {
	next   *booking.Booking
	caller *booking.Booking
	rows   []addons.Line
}

// Unit buffers writes until Commit, then applies them atomically under the store lock.
type Unit struct {
	store    *Store
	readOnly bool
	release  func()

	mu      sync.Mutex
	done    bool
	inserts []pendingInsert
	updates map[booking.ID]pendingUpdate
	records []appoutbox.EventRecord
}

func (u *Unit) Reservations() booking.Store { return u }

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{u} }

func (u *Unit) UnitByID(_ context.Context, id chalet.ID) (*chalet.Chalet, error) {
	return u.store.unitByID(id)
}

func (u *Unit) ActiveRateRules(_ context.Context, unitID chalet.ID, dr daterange.DateRange) ([]rates.Rule, error) {
	return u.store.activeRateRules(unitID, dr), nil
}

func (u *Unit) AddOnsByIDs(_ context.Context, ids []addons.ID) ([]addons.AddOn, error) {
	return u.store.addOnsByIDs(ids)
}

func (u *Unit) Settings(context.Context) (settings.Settings, error) {
	return u.store.currentSettings(), nil
}

// ActiveBookingsForUnit sees committed bookings plus this unit's own pending writes.
func (u *Unit) ActiveBookingsForUnit(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.store.mu.RLock()
	committed := u.store.activeBookingsLocked(unitID, dr, "")
	out := make([]*booking.Booking, 0, len(committed)+len(u.inserts))
	for _, b := range committed {
		if _, replaced := u.updates[b.ID]; replaced {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	u.store.mu.RUnlock()

	for _, up := range u.updates {
		if up.next.UnitID == unitID && up.next.Active() && up.next.Range.Overlaps(dr) {
			out = append(out, cloneBooking(up.next))
		}
	}
	for _, ins := range u.inserts {
		if ins.next.UnitID == unitID && ins.next.Range.Overlaps(dr) {
			out = append(out, cloneBooking(ins.next))
		}
	}
	return out, nil
}

func (u *Unit) BookingByID(_ context.Context, id booking.ID) (*booking.Booking, error) {
	u.mu.Lock()
	if up, ok := u.updates[id]; ok {
		u.mu.Unlock()
		return cloneBooking(up.next), nil
	}
	for _, ins := range u.inserts {
		if ins.next.ID == id {
			u.mu.Unlock()
			return cloneBooking(ins.next), nil
		}
	}
	u.mu.Unlock()
	return u.store.bookingByID(id)
}

func (u *Unit) InsertBooking(ctx context.Context, b *booking.Booking, rows []addons.Line) error {
	if err := u.writable(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.inserts = append(u.inserts, pendingInsert{next: cloneBooking(b), caller: b, rows: slices.Clone(rows)})
	return nil
}

func (u *Unit) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	if err := u.writable(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.updates == nil {
		u.updates = make(map[booking.ID]pendingUpdate)
	}
	expected := b.Version
	if prev, ok := u.updates[b.ID]; ok {
		expected = prev.expected
	}
	u.updates[b.ID] = pendingUpdate{next: cloneBooking(b), caller: b, expected: expected}
	return nil
}

func (u *Unit) addRecord(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := u.writable(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, rec)
	return nil
}

func (u *Unit) writable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.readOnly {
		return uow.ErrReadOnly
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

// Commit validates every buffered write against committed state and applies all of them or none.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.release()
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.readOnly {
		return nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, up := range u.updates {
		current, ok := s.bookings[id]
		if !ok {
			return fmt.Errorf("%w: %s", booking.ErrBookingNotFound, id)
		}
		if current.Version != up.expected {
			return fmt.Errorf("%w: booking %s changed concurrently", booking.ErrBookingConflict, id)
		}
		if up.next.Active() && len(s.activeBookingsLocked(up.next.UnitID, up.next.Range, id)) > 0 {
			return fmt.Errorf("%w: booking %s", booking.ErrBookingConflict, id)
		}
	}
	for i, ins := range u.inserts {
		if _, exists := s.bookings[ins.next.ID]; exists {
			return fmt.Errorf("%w: duplicate booking id %s", booking.ErrBookingConflict, ins.next.ID)
		}
		if len(s.activeBookingsLocked(ins.next.UnitID, ins.next.Range, "")) > 0 {
			return fmt.Errorf("%w: unit %s %s", booking.ErrBookingConflict, ins.next.UnitID, ins.next.Range)
		}
		for _, other := range u.inserts[:i] {
			if other.next.UnitID == ins.next.UnitID && other.next.Range.Overlaps(ins.next.Range) {
				return fmt.Errorf("%w: unit %s %s", booking.ErrBookingConflict, ins.next.UnitID, ins.next.Range)
			}
		}
	}

	for id, up := range u.updates {
		up.next.Version = up.expected + 1
		s.bookings[id] = up.next
		s.lines[id] = slices.Clone(up.next.AddOns)
		up.caller.Version = up.next.Version
	}
	for _, ins := range u.inserts {
		ins.next.Version = 1
		s.bookings[ins.next.ID] = ins.next
		s.lines[ins.next.ID] = ins.rows
		ins.caller.Version = 1
	}
	now := time.Now().UTC()
	for _, rec := range u.records {
		s.outbox = append(s.outbox, &outboxEntry{record: rec, state: outboxNew, nextAttempt: now})
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	defer u.release()
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.inserts = nil
	u.updates = nil
	u.records = nil
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	return o.u.addRecord(ctx, rec)
}

var (
	_ uow.UoWFactory   = (*UoWFactory)(nil)
	_ uow.UnitOfWork   = (*Unit)(nil)
	_ booking.Store    = (*Unit)(nil)
	_ appoutbox.Outbox = unitOutbox{}
)
