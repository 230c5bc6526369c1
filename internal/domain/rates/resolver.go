package rates

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"resort/internal/domain/chalet"
	"resort/internal/domain/shared/daterange"
)

// ErrAmbiguousRules marks a catalog where two or more rules tie on priority and window length.
var ErrAmbiguousRules = errors.New("rates: rules tie on priority and window length")

// AmbiguityError is returned next to a resolved rule when the winner was picked by the
// creation-time fallback. It is a configuration warning, not a failure.
type AmbiguityError struct {
	UnitID  chalet.ID
	Date    time.Time
	Winner  ID
	RuleIDs []ID
}

func (e *AmbiguityError) Error() string {
	ids := make([]string, len(e.RuleIDs))
	for i, id := range e.RuleIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("rates: rules [%s] tie for unit %s on %s; using %s",
		strings.Join(ids, ", "), e.UnitID, e.Date.Format(daterange.Layout), e.Winner)
}

func (e *AmbiguityError) Is(target error) bool {
	return target == ErrAmbiguousRules
}

// Compare orders rules from strongest to weakest: higher priority, then shorter window,
// then most recently created, then greater ID. It returns a negative value when a wins.
func Compare(a, b Rule) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WindowDays(), b.WindowDays()); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// Tied reports whether neither rule beats the other on priority or window length.
func Tied(a, b Rule) bool {
	return a.Priority == b.Priority && a.WindowDays() == b.WindowDays()
}

// Resolver picks the governing rule per night from an immutable catalog snapshot.
// It is safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// NewResolver keeps the active rules sorted by Compare so the first match for a date wins.
func NewResolver(rules []Rule) *Resolver {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	slices.SortStableFunc(active, Compare)
	return &Resolver{rules: active}
}

// Resolve returns the winning rule for the unit on date, or nil when no rule applies and the
// caller should fall back to the unit's own prices. A non-nil *AmbiguityError accompanies a
// winner chosen by the fallback order.
func (r *Resolver) Resolve(unitID chalet.ID, date time.Time) (*Rule, error) {
	var winner *Rule
	var tied []ID
	for i := range r.rules {
		candidate := r.rules[i]
		if !candidate.AppliesTo(unitID, date) {
			continue
		}
		if winner == nil {
			winner = &r.rules[i]
			continue
		}
		if !Tied(*winner, candidate) {
			break
		}
		if tied == nil {
			tied = []ID{winner.ID}
		}
		tied = append(tied, candidate.ID)
	}
	if winner == nil {
		return nil, nil
	}
	out := *winner
	if len(tied) > 0 {
		return &out, &AmbiguityError{UnitID: unitID, Date: daterange.Day(date), Winner: out.ID, RuleIDs: tied}
	}
	return &out, nil
}

// Resolve is a convenience for one-off lookups against an unsorted rule list.
func Resolve(rules []Rule, unitID chalet.ID, date time.Time) (*Rule, error) {
	return NewResolver(rules).Resolve(unitID, date)
}
