package pricing

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"resort/internal/domain/addons"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

var (
	ErrInvalidDiscount = errors.New("pricing: discount must be between zero and the stay subtotal")
	ErrUnitRequired    = errors.New("pricing: unit required")
)

type RateSource string

const (
	SourceRule    RateSource = "rule"
	SourceBase    RateSource = "base"
	SourceWeekend RateSource = "weekend"
)

// NightRate is the price charged for one night and where it came from.
type NightRate struct {
	Date   time.Time
	Rate   money.Money
	Source RateSource
	RuleID rates.ID
}

// Selection pairs a catalog add-on with the requested quantity.
type Selection struct {
	AddOn    addons.AddOn
	Quantity int
}

// Quote is the priced stay before discount and deposit.
type Quote struct {
	UnitID      chalet.ID
	Range       daterange.DateRange
	Nights      []NightRate
	AddOns      []addons.Line
	BaseAmount  money.Money
	AddOnAmount money.Money
	Ambiguities []*rates.AmbiguityError
}

// Subtotal is BaseAmount + AddOnAmount.
func (q Quote) Subtotal() (money.Money, error) {
	return q.BaseAmount.Add(q.AddOnAmount)
}

// Total applies a discount to the subtotal. The discount may not exceed the subtotal.
func (q Quote) Total(discount money.Money) (money.Money, error) {
	subtotal, err := q.Subtotal()
	if err != nil {
		return money.Money{}, err
	}
	if discount.Currency == "" && discount.Amount == 0 {
		return subtotal, nil
	}
	if discount.Currency != subtotal.Currency || discount.IsNegative() || discount.Amount > subtotal.Amount {
		return money.Money{}, ErrInvalidDiscount
	}
	return subtotal.Sub(discount)
}

// Calculator walks every night of a stay. It has no side effects; Settings is passed in
// rather than read from shared state.
type Calculator struct {
	Settings settings.Settings
	// Workers above one resolves nights concurrently; results keep date order.
	Workers int
}

func NewCalculator(s settings.Settings) *Calculator {
	return &Calculator{Settings: s}
}

// ComputeStayTotal prices each night in [CheckIn, CheckOut) and every add-on selection.
func (c *Calculator) ComputeStayTotal(unit *chalet.Chalet, dr daterange.DateRange, resolver *rates.Resolver, selections []Selection) (Quote, error) {
	if unit == nil {
		return Quote{}, ErrUnitRequired
	}
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if resolver == nil {
		resolver = rates.NewResolver(nil)
	}
	currency := unit.Currency()
	dates := dr.Dates()
	nights := make([]NightRate, len(dates))
	ambiguous := make([]*rates.AmbiguityError, len(dates))

	priceNight := func(i int) error {
		night, amb, err := c.nightRate(unit, resolver, dates[i])
		if err != nil {
			return err
		}
		nights[i] = night
		ambiguous[i] = amb
		return nil
	}

	if c.Workers > 1 && len(dates) > 1 {
		var g errgroup.Group
		g.SetLimit(c.Workers)
		for i := range dates {
			g.Go(func() error { return priceNight(i) })
		}
		if err := g.Wait(); err != nil {
			return Quote{}, err
		}
	} else {
		for i := range dates {
			if err := priceNight(i); err != nil {
				return Quote{}, err
			}
		}
	}

	quote := Quote{
		UnitID:      unit.ID,
		Range:       dr,
		Nights:      nights,
		BaseAmount:  money.Zero(currency),
		AddOnAmount: money.Zero(currency),
	}
	var err error
	for i, night := range nights {
		if quote.BaseAmount, err = quote.BaseAmount.Add(night.Rate); err != nil {
			return Quote{}, fmt.Errorf("pricing: night %s: %w", night.Date.Format(daterange.Layout), err)
		}
		if ambiguous[i] != nil {
			quote.Ambiguities = append(quote.Ambiguities, ambiguous[i])
		}
	}

	for _, sel := range selections {
		line, err := sel.AddOn.LineFor(sel.Quantity, len(dates))
		if err != nil {
			return Quote{}, err
		}
		if quote.AddOnAmount, err = quote.AddOnAmount.Add(line.Subtotal); err != nil {
			return Quote{}, fmt.Errorf("pricing: add-on %s: %w", line.AddOnID, err)
		}
		quote.AddOns = append(quote.AddOns, line)
	}
	return quote, nil
}

func (c *Calculator) nightRate(unit *chalet.Chalet, resolver *rates.Resolver, date time.Time) (NightRate, *rates.AmbiguityError, error) {
	rule, err := resolver.Resolve(unit.ID, date)
	var amb *rates.AmbiguityError
	if err != nil && !errors.As(err, &amb) {
		return NightRate{}, nil, err
	}
	if rule != nil {
		if rule.Price.Currency != unit.Currency() {
			return NightRate{}, nil, fmt.Errorf("pricing: rule %s: %w", rule.ID, money.ErrCurrencyMismatch)
		}
		return NightRate{Date: date, Rate: rule.Price, Source: SourceRule, RuleID: rule.ID}, amb, nil
	}
	if c.Settings.IsWeekend(date) {
		return NightRate{Date: date, Rate: unit.WeekendPrice, Source: SourceWeekend}, nil, nil
	}
	return NightRate{Date: date, Rate: unit.BasePrice, Source: SourceBase}, nil, nil
}
