package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
)

// Store keeps the catalog, bookings and outbox in process memory. Reads and writes for the
// reservation flow go through a unit of work from NewUoWFactory; the Put methods load the catalog.
type Store struct {
	mu       sync.RWMutex
	chalets  map[chalet.ID]chalet.Chalet
	rules    map[rates.ID]rates.Rule
	addOns   map[addons.ID]addons.AddOn
	settings *settings.Settings
	bookings map[booking.ID]*booking.Booking
	lines    map[booking.ID][]addons.Line
	outbox   []*outboxEntry
}

func NewStore() *Store {
	return &Store{
		chalets:  make(map[chalet.ID]chalet.Chalet),
		rules:    make(map[rates.ID]rates.Rule),
		addOns:   make(map[addons.ID]addons.AddOn),
		bookings: make(map[booking.ID]*booking.Booking),
		lines:    make(map[booking.ID][]addons.Line),
	}
}

func (s *Store) PutChalet(_ context.Context, c *chalet.Chalet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chalets[c.ID] = *c
	return nil
}

func (s *Store) PutRateRule(_ context.Context, r rates.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r.Normalize()
	return nil
}

func (s *Store) PutAddOn(_ context.Context, a addons.AddOn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOns[a.ID] = a
	return nil
}

func (s *Store) PutSettings(_ context.Context, cfg settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &cfg
	return nil
}

// AddOnLines returns the add-on rows stored for a booking.
func (s *Store) AddOnLines(id booking.ID) []addons.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines[id])
}

// Bookings returns copies of every stored booking, for tests and diagnostics.
func (s *Store) Bookings() []*booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*booking.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, cloneBooking(b))
	}
	slices.SortFunc(out, func(a, b *booking.Booking) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) unitByID(id chalet.ID) (*chalet.Chalet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chalets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", booking.ErrUnitNotFound, id)
	}
	return &c, nil
}

func (s *Store) activeRateRules(unitID chalet.ID, dr daterange.DateRange) []rates.Rule {
	lastNight := dr.CheckOut.AddDate(0, 0, -1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rates.Rule
	for _, r := range s.rules {
		if !r.Active || (!r.Global() && r.UnitID != unitID) {
			continue
		}
		if r.StartDate.After(lastNight) || r.EndDate.Before(dr.CheckIn) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, rates.Compare)
	return out
}

func (s *Store) addOnsByIDs(ids []addons.ID) ([]addons.AddOn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]addons.AddOn, 0, len(ids))
	for _, id := range ids {
		a, ok := s.addOns[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", addons.ErrNotFound, id)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) currentSettings() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return settings.Default()
	}
	cfg := *s.settings
	cfg.WeekendDays = slices.Clone(cfg.WeekendDays)
	return cfg
}

func (s *Store) bookingByID(id booking.ID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok || b.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", booking.ErrBookingNotFound, id)
	}
	return cloneBooking(b), nil
}

// activeBookingsLocked returns committed bookings of the unit that hold nights overlapping dr.
// Callers must hold mu.
func (s *Store) activeBookingsLocked(unitID chalet.ID, dr daterange.DateRange, exclude booking.ID) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.UnitID != unitID || b.ID == exclude || !b.Active() || !b.Range.Overlaps(dr) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// DeleteBooking soft-deletes a booking, releasing its nights.
func (s *Store) DeleteBooking(_ context.Context, id booking.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return fmt.Errorf("%w: %s", booking.ErrBookingNotFound, id)
	}
	deleted := at.UTC()
	b.DeletedAt = &deleted
	b.Version++
	return nil
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	cp.Nights = slices.Clone(b.Nights)
	cp.AddOns = slices.Clone(b.AddOns)
	if b.DeletedAt != nil {
		at := *b.DeletedAt
		cp.DeletedAt = &at
	}
	cp.ClearEvents()
	return &cp
}
