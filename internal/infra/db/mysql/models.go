package mysql

import (
	"time"

	"gorm.io/gorm"

	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

type moneyCols struct {
	Amount   int64  `gorm:"column:amount;not null"`
	Currency string `gorm:"column:currency;size:3;not null"`
}

func toCols(m money.Money) moneyCols { return moneyCols{Amount: m.Amount, Currency: m.Currency} }

func (c moneyCols) money() money.Money { return money.Money{Amount: c.Amount, Currency: c.Currency} }

type chaletRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"size:255"`
	Capacity     int       `gorm:"not null"`
	BasePrice    moneyCols `gorm:"embedded;embeddedPrefix:base_"`
	WeekendPrice moneyCols `gorm:"embedded;embeddedPrefix:weekend_"`
	Active       bool      `gorm:"not null;default:true"`
	DeletedAt    gorm.DeletedAt
}

func (chaletRow) TableName() string { return "chalets" }

func (r chaletRow) toDomain() *chalet.Chalet {
	c := &chalet.Chalet{
		ID:           chalet.ID(r.ID),
		Name:         r.Name,
		Capacity:     r.Capacity,
		BasePrice:    r.BasePrice.money(),
		WeekendPrice: r.WeekendPrice.money(),
		Active:       r.Active,
	}
	if r.DeletedAt.Valid {
		at := r.DeletedAt.Time.UTC()
		c.DeletedAt = &at
	}
	return c
}

type rateRuleRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255"`
	UnitID    string    `gorm:"size:64;index:idx_rate_rules_lookup,priority:1"`
	StartDate time.Time `gorm:"type:date;index:idx_rate_rules_lookup,priority:3"`
	EndDate   time.Time `gorm:"type:date"`
	Price     moneyCols `gorm:"embedded;embeddedPrefix:price_"`
	Priority  int       `gorm:"not null;default:0"`
	Active    bool      `gorm:"not null;index:idx_rate_rules_lookup,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (rateRuleRow) TableName() string { return "rate_rules" }

func (r rateRuleRow) toDomain() rates.Rule {
	return rates.Rule{
		ID:        rates.ID(r.ID),
		Name:      r.Name,
		UnitID:    chalet.ID(r.UnitID),
		StartDate: daterange.Day(r.StartDate),
		EndDate:   daterange.Day(r.EndDate),
		Price:     r.Price.money(),
		Priority:  r.Priority,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type addOnRow struct {
	ID     string    `gorm:"primaryKey;size:64"`
	Name   string    `gorm:"size:255"`
	Price  moneyCols `gorm:"embedded;embeddedPrefix:price_"`
	Mode   string    `gorm:"size:16;not null"`
	Active bool      `gorm:"not null"`
}

func (addOnRow) TableName() string { return "add_ons" }

func (r addOnRow) toDomain() addons.AddOn {
	return addons.AddOn{ID: addons.ID(r.ID), Name: r.Name, Price: r.Price.money(), Mode: addons.Mode(r.Mode), Active: r.Active}
}

const settingsKey = "property"

type settingsRow struct {
	ID                string    `gorm:"primaryKey;size:32"`
	DepositType       string    `gorm:"size:16"`
	DepositPercentage int64     `gorm:"not null;default:0"`
	DepositFixed      moneyCols `gorm:"embedded;embeddedPrefix:deposit_fixed_"`
	CheckInTime       string    `gorm:"size:5"`
	CheckOutTime      string    `gorm:"size:5"`
	WeekendDays       []int     `gorm:"serializer:json;type:json"`
}

func (settingsRow) TableName() string { return "settings" }

func newSettingsRow(s settings.Settings) settingsRow {
	days := make([]int, len(s.WeekendDays))
	for i, d := range s.WeekendDays {
		days[i] = int(d)
	}
	return settingsRow{
		ID:                settingsKey,
		DepositType:       string(s.Deposit.Type),
		DepositPercentage: s.Deposit.Percentage,
		DepositFixed:      toCols(s.Deposit.FixedAmount),
		CheckInTime:       s.CheckInTime,
		CheckOutTime:      s.CheckOutTime,
		WeekendDays:       days,
	}
}

func (r settingsRow) toDomain() settings.Settings {
	days := make([]time.Weekday, len(r.WeekendDays))
	for i, d := range r.WeekendDays {
		days[i] = time.Weekday(d)
	}
	return settings.Settings{
		Deposit: settings.DepositPolicy{
			Type:        settings.DepositType(r.DepositType),
			Percentage:  r.DepositPercentage,
			FixedAmount: r.DepositFixed.money(),
		},
		CheckInTime:  r.CheckInTime,
		CheckOutTime: r.CheckOutTime,
		WeekendDays:  days,
	}
}

type nightRateJSON struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
	Source string `json:"source"`
	RuleID string `json:"rule_id,omitempty"`
}

type bookingRow struct {
	ID        string          `gorm:"primaryKey;size:64"`
	UnitID    string          `gorm:"size:64;not null;index:idx_bookings_unit_range,priority:1"`
	GuestID   string          `gorm:"size:64;not null"`
	CheckIn   time.Time       `gorm:"type:date;not null;index:idx_bookings_unit_range,priority:2"`
	CheckOut  time.Time       `gorm:"type:date;not null"`
	Guests    int             `gorm:"not null"`
	Nights    []nightRateJSON `gorm:"serializer:json;type:json"`
	Currency  string          `gorm:"size:3;not null"`
	Base      int64           `gorm:"column:base_amount;not null"`
	AddOn     int64           `gorm:"column:addon_amount;not null"`
	Discount  int64           `gorm:"column:discount_amount;not null"`
	Deposit   int64           `gorm:"column:deposit_amount;not null"`
	Total     int64           `gorm:"column:total_amount;not null"`
	Status    string          `gorm:"size:16;not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime:false"`
	DeletedAt *time.Time      `gorm:"index"`
	Version   int64           `gorm:"not null"`
}

func (bookingRow) TableName() string { return "bookings" }

func newBookingRow(b *booking.Booking) bookingRow {
	nights := make([]nightRateJSON, len(b.Nights))
	for i, n := range b.Nights {
		nights[i] = nightRateJSON{
			Date:   n.Date.Format(daterange.Layout),
			Amount: n.Rate.Amount,
			Source: string(n.Source),
			RuleID: string(n.RuleID),
		}
	}
	return bookingRow{
		ID:        string(b.ID),
		UnitID:    string(b.UnitID),
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Guests:    b.Guests,
		Nights:    nights,
		Currency:  b.TotalAmount.Currency,
		Base:      b.BaseAmount.Amount,
		AddOn:     b.AddOnAmount.Amount,
		Discount:  b.DiscountAmount.Amount,
		Deposit:   b.DepositAmount.Amount,
		Total:     b.TotalAmount.Amount,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
		DeletedAt: b.DeletedAt,
		Version:   b.Version,
	}
}

func (r bookingRow) toDomain(lines []addons.Line) (*booking.Booking, error) {
	nights := make([]pricing.NightRate, len(r.Nights))
	for i, n := range r.Nights {
		date, err := daterange.ParseDate(n.Date)
		if err != nil {
			return nil, err
		}
		nights[i] = pricing.NightRate{
			Date:   date,
			Rate:   money.Money{Amount: n.Amount, Currency: r.Currency},
			Source: pricing.RateSource(n.Source),
			RuleID: rates.ID(n.RuleID),
		}
	}
	b := &booking.Booking{
		ID:             booking.ID(r.ID),
		UnitID:         chalet.ID(r.UnitID),
		GuestID:        r.GuestID,
		Range:          daterange.DateRange{CheckIn: daterange.Day(r.CheckIn), CheckOut: daterange.Day(r.CheckOut)},
		Guests:         r.Guests,
		Nights:         nights,
		AddOns:         lines,
		BaseAmount:     money.Money{Amount: r.Base, Currency: r.Currency},
		AddOnAmount:    money.Money{Amount: r.AddOn, Currency: r.Currency},
		DiscountAmount: money.Money{Amount: r.Discount, Currency: r.Currency},
		DepositAmount:  money.Money{Amount: r.Deposit, Currency: r.Currency},
		TotalAmount:    money.Money{Amount: r.Total, Currency: r.Currency},
		Status:         booking.Status(r.Status),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		Version:        r.Version,
	}
	if r.DeletedAt != nil {
		at := r.DeletedAt.UTC()
		b.DeletedAt = &at
	}
	return b, nil
}

type bookingAddOnRow struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	BookingID string    `gorm:"size:64;not null;index"`
	Position  int       `gorm:"not null"`
	AddOnID   string    `gorm:"size:64;not null"`
	Name      string    `gorm:"size:255"`
	Mode      string    `gorm:"size:16;not null"`
	Quantity  int       `gorm:"not null"`
	UnitPrice moneyCols `gorm:"embedded;embeddedPrefix:unit_price_"`
	Subtotal  moneyCols `gorm:"embedded;embeddedPrefix:subtotal_"`
}

func (bookingAddOnRow) TableName() string { return "booking_addons" }

func newBookingAddOnRows(id booking.ID, lines []addons.Line) []bookingAddOnRow {
	rows := make([]bookingAddOnRow, len(lines))
	for i, l := range lines {
		rows[i] = bookingAddOnRow{
			BookingID: string(id),
			Position:  i,
			AddOnID:   string(l.AddOnID),
			Name:      l.Name,
			Mode:      string(l.Mode),
			Quantity:  l.Quantity,
			UnitPrice: toCols(l.UnitPrice),
			Subtotal:  toCols(l.Subtotal),
		}
	}
	return rows
}

func (r bookingAddOnRow) toDomain() addons.Line {
	return addons.Line{
		BookingID: r.BookingID,
		AddOnID:   addons.ID(r.AddOnID),
		Name:      r.Name,
		Mode:      addons.Mode(r.Mode),
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice.money(),
		Subtotal:  r.Subtotal.money(),
	}
}
