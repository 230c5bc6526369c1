package mongo

import (
	"time"

	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyDoc(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) money() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type chaletDocument struct {
	ID           string        `bson:"_id"`
	Name         string        `bson:"name"`
	Capacity     int           `bson:"capacity"`
	BasePrice    moneyDocument `bson:"base_price"`
	WeekendPrice moneyDocument `bson:"weekend_price"`
	Active       bool          `bson:"active"`
	DeletedAt    *time.Time    `bson:"deleted_at,omitempty"`
}

func newChaletDocument(c *chalet.Chalet) chaletDocument {
	return chaletDocument{
		ID:           string(c.ID),
		Name:         c.Name,
		Capacity:     c.Capacity,
		BasePrice:    toMoneyDoc(c.BasePrice),
		WeekendPrice: toMoneyDoc(c.WeekendPrice),
		Active:       c.Active,
		DeletedAt:    c.DeletedAt,
	}
}

func (d chaletDocument) toDomain() *chalet.Chalet {
	return &chalet.Chalet{
		ID:           chalet.ID(d.ID),
		Name:         d.Name,
		Capacity:     d.Capacity,
		BasePrice:    d.BasePrice.money(),
		WeekendPrice: d.WeekendPrice.money(),
		Active:       d.Active,
		DeletedAt:    utcPtr(d.DeletedAt),
	}
}

type rateRuleDocument struct {
	ID        string        `bson:"_id"`
	Name      string        `bson:"name"`
	UnitID    string        `bson:"unit_id"`
	StartDate time.Time     `bson:"start_date"`
	EndDate   time.Time     `bson:"end_date"`
	Price     moneyDocument `bson:"price"`
	Priority  int           `bson:"priority"`
	Active    bool          `bson:"active"`
	CreatedAt time.Time     `bson:"created_at"`
}

func newRateRuleDocument(r rates.Rule) rateRuleDocument {
	r = r.Normalize()
	return rateRuleDocument{
		ID:        string(r.ID),
		Name:      r.Name,
		UnitID:    string(r.UnitID),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Price:     toMoneyDoc(r.Price),
		Priority:  r.Priority,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (d rateRuleDocument) toDomain() rates.Rule {
	return rates.Rule{
		ID:        rates.ID(d.ID),
		Name:      d.Name,
		UnitID:    chalet.ID(d.UnitID),
		StartDate: d.StartDate.UTC(),
		EndDate:   d.EndDate.UTC(),
		Price:     d.Price.money(),
		Priority:  d.Priority,
		Active:    d.Active,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type addOnDocument struct {
	ID     string        `bson:"_id"`
	Name   string        `bson:"name"`
	Price  moneyDocument `bson:"price"`
	Mode   string        `bson:"mode"`
	Active bool          `bson:"active"`
}

func newAddOnDocument(a addons.AddOn) addOnDocument {
	return addOnDocument{ID: string(a.ID), Name: a.Name, Price: toMoneyDoc(a.Price), Mode: string(a.Mode), Active: a.Active}
}

func (d addOnDocument) toDomain() addons.AddOn {
	return addons.AddOn{ID: addons.ID(d.ID), Name: d.Name, Price: d.Price.money(), Mode: addons.Mode(d.Mode), Active: d.Active}
}

const settingsID = "property"

type settingsDocument struct {
	ID                string        `bson:"_id"`
	DepositType       string        `bson:"deposit_type"`
	DepositPercentage int64         `bson:"deposit_percentage"`
	DepositFixed      moneyDocument `bson:"deposit_fixed"`
	CheckInTime       string        `bson:"check_in_time"`
	CheckOutTime      string        `bson:"check_out_time"`
	WeekendDays       []int         `bson:"weekend_days"`
}

func newSettingsDocument(s settings.Settings) settingsDocument {
	days := make([]int, len(s.WeekendDays))
	for i, d := range s.WeekendDays {
		days[i] = int(d)
	}
	return settingsDocument{
		ID:                settingsID,
		DepositType:       string(s.Deposit.Type),
		DepositPercentage: s.Deposit.Percentage,
		DepositFixed:      toMoneyDoc(s.Deposit.FixedAmount),
		CheckInTime:       s.CheckInTime,
		CheckOutTime:      s.CheckOutTime,
		WeekendDays:       days,
	}
}

func (d settingsDocument) toDomain() settings.Settings {
	days := make([]time.Weekday, len(d.WeekendDays))
	for i, wd := range d.WeekendDays {
		days[i] = time.Weekday(wd)
	}
	return settings.Settings{
		Deposit: settings.DepositPolicy{
			Type:        settings.DepositType(d.DepositType),
			Percentage:  d.DepositPercentage,
			FixedAmount: d.DepositFixed.money(),
		},
		CheckInTime:  d.CheckInTime,
		CheckOutTime: d.CheckOutTime,
		WeekendDays:  days,
	}
}

type nightRateDocument struct {
	Date   time.Time     `bson:"date"`
	Rate   moneyDocument `bson:"rate"`
	Source string        `bson:"source"`
	RuleID string        `bson:"rule_id,omitempty"`
}

type bookingDocument struct {
	ID             string              `bson:"_id"`
	UnitID         string              `bson:"unit_id"`
	GuestID        string              `bson:"guest_id"`
	CheckIn        time.Time           `bson:"check_in"`
	CheckOut       time.Time           `bson:"check_out"`
	Guests         int                 `bson:"guests"`
	Nights         []nightRateDocument `bson:"nights"`
	BaseAmount     moneyDocument       `bson:"base_amount"`
	AddOnAmount    moneyDocument       `bson:"addon_amount"`
	DiscountAmount moneyDocument       `bson:"discount_amount"`
	DepositAmount  moneyDocument       `bson:"deposit_amount"`
	TotalAmount    moneyDocument       `bson:"total_amount"`
	Status         string              `bson:"status"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
	DeletedAt      *time.Time          `bson:"deleted_at"`
	Version        int64               `bson:"version"`
}

func newBookingDocument(b *booking.Booking) bookingDocument {
	nights := make([]nightRateDocument, len(b.Nights))
	for i, n := range b.Nights {
		nights[i] = nightRateDocument{Date: daterange.Day(n.Date), Rate: toMoneyDoc(n.Rate), Source: string(n.Source), RuleID: string(n.RuleID)}
	}
	return bookingDocument{
		ID:             string(b.ID),
		UnitID:         string(b.UnitID),
		GuestID:        b.GuestID,
		CheckIn:        b.Range.CheckIn,
		CheckOut:       b.Range.CheckOut,
		Guests:         b.Guests,
		Nights:         nights,
		BaseAmount:     toMoneyDoc(b.BaseAmount),
		AddOnAmount:    toMoneyDoc(b.AddOnAmount),
		DiscountAmount: toMoneyDoc(b.DiscountAmount),
		DepositAmount:  toMoneyDoc(b.DepositAmount),
		TotalAmount:    toMoneyDoc(b.TotalAmount),
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
		DeletedAt:      b.DeletedAt,
		Version:        b.Version,
	}
}

func (d bookingDocument) toDomain(lines []addons.Line) *booking.Booking {
	nights := make([]pricing.NightRate, len(d.Nights))
	for i, n := range d.Nights {
		nights[i] = pricing.NightRate{Date: n.Date.UTC(), Rate: n.Rate.money(), Source: pricing.RateSource(n.Source), RuleID: rates.ID(n.RuleID)}
	}
	return &booking.Booking{
		ID:             booking.ID(d.ID),
		UnitID:         chalet.ID(d.UnitID),
		GuestID:        d.GuestID,
		Range:          daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guests:         d.Guests,
		Nights:         nights,
		AddOns:         lines,
		BaseAmount:     d.BaseAmount.money(),
		AddOnAmount:    d.AddOnAmount.money(),
		DiscountAmount: d.DiscountAmount.money(),
		DepositAmount:  d.DepositAmount.money(),
		TotalAmount:    d.TotalAmount.money(),
		Status:         booking.Status(d.Status),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
		DeletedAt:      utcPtr(d.DeletedAt),
		Version:        d.Version,
	}
}

type bookingAddOnDocument struct {
	BookingID string        `bson:"booking_id"`
	Position  int           `bson:"position"`
	AddOnID   string        `bson:"addon_id"`
	Name      string        `bson:"name"`
	Mode      string        `bson:"mode"`
	Quantity  int           `bson:"quantity"`
	UnitPrice moneyDocument `bson:"unit_price"`
	Subtotal  moneyDocument `bson:"subtotal"`
}

func newBookingAddOnDocument(bookingID booking.ID, pos int, l addons.Line) bookingAddOnDocument {
	return bookingAddOnDocument{
		BookingID: string(bookingID),
		Position:  pos,
		AddOnID:   string(l.AddOnID),
		Name:      l.Name,
		Mode:      string(l.Mode),
		Quantity:  l.Quantity,
		UnitPrice: toMoneyDoc(l.UnitPrice),
		Subtotal:  toMoneyDoc(l.Subtotal),
	}
}

func (d bookingAddOnDocument) toDomain() addons.Line {
	return addons.Line{
		BookingID: d.BookingID,
		AddOnID:   addons.ID(d.AddOnID),
		Name:      d.Name,
		Mode:      addons.Mode(d.Mode),
		Quantity:  d.Quantity,
		UnitPrice: d.UnitPrice.money(),
		Subtotal:  d.Subtotal.money(),
	}
}

// nightDocument claims one night of one unit; its _id is unique per unit and date.
type nightDocument struct {
	ID        string    `bson:"_id"`
	UnitID    string    `bson:"unit_id"`
	Night     time.Time `bson:"night"`
	BookingID string    `bson:"booking_id"`
}

func nightKey(unitID chalet.ID, night time.Time) string {
	return string(unitID) + ":" + daterange.Day(night).Format(daterange.Layout)
}

func nightDocuments(b *booking.Booking) []any {
	dates := b.Range.Dates()
	out := make([]any, len(dates))
	for i, d := range dates {
		out[i] = nightDocument{ID: nightKey(b.UnitID, d), UnitID: string(b.UnitID), Night: d, BookingID: string(b.ID)}
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
