// Package catalog imports the chalets, rate rules, add-ons and property settings that the
// reservation flow prices against. Snapshots are JSON documents with decimal prices.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

var ErrInvalidSnapshot = errors.New("catalog: invalid snapshot")

// Seeder is implemented by every store that can hold the catalog.
type Seeder interface {
	PutChalet(ctx context.Context, c *chalet.Chalet) error
	PutRateRule(ctx context.Context, r rates.Rule) error
	PutAddOn(ctx context.Context, a addons.AddOn) error
	PutSettings(ctx context.Context, s settings.Settings) error
}

type Snapshot struct {
	Currency  string          `json:"currency"`
	Settings  *SettingsEntry  `json:"settings,omitempty"`
	Chalets   []ChaletEntry   `json:"chalets"`
	RateRules []RateRuleEntry `json:"rate_rules"`
	AddOns    []AddOnEntry    `json:"add_ons"`
}

type SettingsEntry struct {
	Deposit      DepositEntry `json:"deposit"`
	CheckInTime  string       `json:"check_in_time"`
	CheckOutTime string       `json:"check_out_time"`
	WeekendDays  []string     `json:"weekend_days"`
}

type DepositEntry struct {
	Type        string `json:"type"`
	Percentage  int64  `json:"percentage"`
	FixedAmount string `json:"fixed_amount"`
}

type ChaletEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	BasePrice    string `json:"base_price"`
	WeekendPrice string `json:"weekend_price"`
	Active       *bool  `json:"active"`
}

type RateRuleEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitID    string    `json:"unit_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Price     string    `json:"price"`
	Priority  int       `json:"priority"`
	Active    *bool     `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AddOnEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Mode   string `json:"mode"`
	Active *bool  `json:"active"`
}

// Summary counts what an import wrote.
type Summary struct {
	Chalets   int
	RateRules int
	AddOns    int
	Settings  bool
}

// Decode parses and checks a snapshot. Entries without "active" default to active.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	snap.Currency = strings.ToUpper(strings.TrimSpace(snap.Currency))
	if len(snap.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency %q", ErrInvalidSnapshot, snap.Currency)
	}
	return &snap, nil
}

// Import writes the snapshot into seeder: settings first, then chalets, rules and add-ons.
// It stops at the first invalid entry; entries written before it stay written.
func Import(ctx context.Context, seeder Seeder, snap *Snapshot, now time.Time) (Summary, error) {
	var sum Summary
	if snap.Settings != nil {
		cfg, err := snap.Settings.toDomain(snap.Currency)
		if err != nil {
			return sum, err
		}
		if err := seeder.PutSettings(ctx, cfg); err != nil {
			return sum, err
		}
		sum.Settings = true
	}
	for _, e := range snap.Chalets {
		c, err := e.toDomain(snap.Currency)
		if err != nil {
			return sum, err
		}
		if err := seeder.PutChalet(ctx, c); err != nil {
			return sum, err
		}
		sum.Chalets++
	}
	for _, e := range snap.RateRules {
		r, err := e.toDomain(snap.Currency, now)
		if err != nil {
			return sum, err
		}
		if err := seeder.PutRateRule(ctx, r); err != nil {
			return sum, fmt.Errorf("rate rule %s: %w", e.ID, err)
		}
		sum.RateRules++
	}
	for _, e := range snap.AddOns {
		a, err := e.toDomain(snap.Currency)
		if err != nil {
			return sum, err
		}
		if err := seeder.PutAddOn(ctx, a); err != nil {
			return sum, err
		}
		sum.AddOns++
	}
	return sum, nil
}

// Load decodes a snapshot from r and imports it.
func Load(ctx context.Context, seeder Seeder, r io.Reader, now time.Time) (Summary, error) {
	snap, err := Decode(r)
	if err != nil {
		return Summary{}, err
	}
	return Import(ctx, seeder, snap, now)
}

// LoadFile imports the snapshot stored at path.
func LoadFile(ctx context.Context, seeder Seeder, path string, now time.Time) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(ctx, seeder, f, now)
}

func (e SettingsEntry) toDomain(currency string) (settings.Settings, error) {
	cfg := settings.Default()
	if e.CheckInTime != "" {
		cfg.CheckInTime = e.CheckInTime
	}
	if e.CheckOutTime != "" {
		cfg.CheckOutTime = e.CheckOutTime
	}
	if e.WeekendDays != nil {
		days := make([]time.Weekday, 0, len(e.WeekendDays))
		for _, raw := range e.WeekendDays {
			wd, err := parseWeekday(raw)
			if err != nil {
				return settings.Settings{}, err
			}
			days = append(days, wd)
		}
		cfg.WeekendDays = days
	}
	if e.Deposit.Type != "" {
		policy := settings.DepositPolicy{Type: settings.DepositType(strings.ToLower(e.Deposit.Type)), Percentage: e.Deposit.Percentage}
		if policy.Type == settings.DepositFixed {
			amount, err := money.Parse(e.Deposit.FixedAmount, currency)
			if err != nil {
				return settings.Settings{}, fmt.Errorf("%w: deposit fixed amount: %v", ErrInvalidSnapshot, err)
			}
			policy.FixedAmount = amount
		}
		cfg.Deposit = policy
	}
	return cfg, nil
}

func (e ChaletEntry) toDomain(currency string) (*chalet.Chalet, error) {
	base, err := money.Parse(e.BasePrice, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: chalet %s base price: %v", ErrInvalidSnapshot, e.ID, err)
	}
	var weekend money.Money
	if strings.TrimSpace(e.WeekendPrice) != "" {
		if weekend, err = money.Parse(e.WeekendPrice, currency); err != nil {
			return nil, fmt.Errorf("%w: chalet %s weekend price: %v", ErrInvalidSnapshot, e.ID, err)
		}
	}
	c, err := chalet.New(chalet.Params{
		ID:           chalet.ID(e.ID),
		Name:         e.Name,
		Capacity:     e.Capacity,
		BasePrice:    base,
		WeekendPrice: weekend,
		Active:       activeOrDefault(e.Active),
	})
	if err != nil {
		return nil, fmt.Errorf("chalet %s: %w", e.ID, err)
	}
	return c, nil
}

func (e RateRuleEntry) toDomain(currency string, now time.Time) (rates.Rule, error) {
	start, err := daterange.ParseDate(e.StartDate)
	if err != nil {
		return rates.Rule{}, fmt.Errorf("%w: rule %s start date: %v", ErrInvalidSnapshot, e.ID, err)
	}
	end, err := daterange.ParseDate(e.EndDate)
	if err != nil {
		return rates.Rule{}, fmt.Errorf("%w: rule %s end date: %v", ErrInvalidSnapshot, e.ID, err)
	}
	price, err := money.Parse(e.Price, currency)
	if err != nil {
		return rates.Rule{}, fmt.Errorf("%w: rule %s price: %v", ErrInvalidSnapshot, e.ID, err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	return rates.Rule{
		ID:        rates.ID(e.ID),
		Name:      e.Name,
		UnitID:    chalet.ID(e.UnitID),
		StartDate: start,
		EndDate:   end,
		Price:     price,
		Priority:  e.Priority,
		Active:    activeOrDefault(e.Active),
		CreatedAt: created.UTC(),
	}, nil
}

func (e AddOnEntry) toDomain(currency string) (addons.AddOn, error) {
	price, err := money.Parse(e.Price, currency)
	if err != nil {
		return addons.AddOn{}, fmt.Errorf("%w: add-on %s price: %v", ErrInvalidSnapshot, e.ID, err)
	}
	if price.IsNegative() {
		return addons.AddOn{}, fmt.Errorf("%w: add-on %s price is negative", ErrInvalidSnapshot, e.ID)
	}
	mode := addons.Mode(strings.ToLower(e.Mode))
	if !mode.Valid() {
		return addons.AddOn{}, fmt.Errorf("add-on %s: %w: %q", e.ID, addons.ErrInvalidMode, e.Mode)
	}
	if strings.TrimSpace(e.ID) == "" {
		return addons.AddOn{}, fmt.Errorf("%w: add-on id required", ErrInvalidSnapshot)
	}
	return addons.AddOn{ID: addons.ID(e.ID), Name: e.Name, Price: price, Mode: mode, Active: activeOrDefault(e.Active)}, nil
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}

func parseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: weekday %q", ErrInvalidSnapshot, raw)
}
