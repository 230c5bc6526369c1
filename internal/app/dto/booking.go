package dto

import (
	"time"

	"resort/internal/app/reservations"
	domainaddons "resort/internal/domain/addons"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/pricing"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type NightDTO struct {
	Date   string   `json:"date"`
	Rate   MoneyDTO `json:"rate"`
	Source string   `json:"source"`
	RuleID string   `json:"rule_id,omitempty"`
}

type AddOnLineDTO struct {
	AddOnID   string   `json:"add_on_id"`
	Name      string   `json:"name"`
	Mode      string   `json:"mode"`
	Quantity  int      `json:"quantity"`
	UnitPrice MoneyDTO `json:"unit_price"`
	Subtotal  MoneyDTO `json:"subtotal"`
}

type Booking struct {
	ID        string         `json:"id"`
	UnitID    string         `json:"unit_id"`
	GuestID   string         `json:"guest_id"`
	CheckIn   string         `json:"check_in"`
	CheckOut  string         `json:"check_out"`
	Nights    int            `json:"nights"`
	Guests    int            `json:"guests"`
	Status    string         `json:"status"`
	Base      MoneyDTO       `json:"base_amount"`
	AddOns    MoneyDTO       `json:"add_on_amount"`
	Discount  MoneyDTO       `json:"discount_amount"`
	Deposit   MoneyDTO       `json:"deposit_amount"`
	Total     MoneyDTO       `json:"total_amount"`
	Lines     []AddOnLineDTO `json:"add_ons"`
	Rates     []NightDTO     `json:"night_rates"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Quote struct {
	UnitID    string         `json:"unit_id"`
	CheckIn   string         `json:"check_in"`
	CheckOut  string         `json:"check_out"`
	Nights    []NightDTO     `json:"nights"`
	AddOns    []AddOnLineDTO `json:"add_ons"`
	Base      MoneyDTO       `json:"base_amount"`
	AddOnSum  MoneyDTO       `json:"add_on_amount"`
	Discount  MoneyDTO       `json:"discount_amount"`
	Total     MoneyDTO       `json:"total_amount"`
	Deposit   MoneyDTO       `json:"deposit_amount"`
	Available bool           `json:"available"`
	Conflicts []string       `json:"conflicts,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

type Availability struct {
	UnitID    string   `json:"unit_id"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Available bool     `json:"available"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency, Display: value.Decimal()}
}

func MapBooking(b *domainbooking.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:        string(b.ID),
		UnitID:    string(b.UnitID),
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:  b.Range.CheckOut.Format(daterange.Layout),
		Nights:    b.Range.Nights(),
		Guests:    b.Guests,
		Status:    string(b.Status),
		Base:      MapMoney(b.BaseAmount),
		AddOns:    MapMoney(b.AddOnAmount),
		Discount:  MapMoney(b.DiscountAmount),
		Deposit:   MapMoney(b.DepositAmount),
		Total:     MapMoney(b.TotalAmount),
		Lines:     mapLines(b.AddOns),
		Rates:     mapNights(b.Nights),
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func MapQuote(est reservations.Estimate) *Quote {
	q := est.Quote
	out := &Quote{
		UnitID:    string(q.UnitID),
		CheckIn:   q.Range.CheckIn.Format(daterange.Layout),
		CheckOut:  q.Range.CheckOut.Format(daterange.Layout),
		Nights:    mapNights(q.Nights),
		AddOns:    mapLines(q.AddOns),
		Base:      MapMoney(q.BaseAmount),
		AddOnSum:  MapMoney(q.AddOnAmount),
		Discount:  MapMoney(est.Discount),
		Total:     MapMoney(est.Total),
		Deposit:   MapMoney(est.Deposit),
		Available: est.Available,
		Conflicts: bookingIDs(est.Conflicts),
	}
	for _, amb := range q.Ambiguities {
		out.Warnings = append(out.Warnings, amb.Error())
	}
	return out
}

func MapAvailability(a reservations.Availability) *Availability {
	return &Availability{
		UnitID:    string(a.UnitID),
		CheckIn:   a.Range.CheckIn.Format(daterange.Layout),
		CheckOut:  a.Range.CheckOut.Format(daterange.Layout),
		Available: a.Available,
		Conflicts: bookingIDs(a.Conflicts),
	}
}

func mapNights(nights []pricing.NightRate) []NightDTO {
	out := make([]NightDTO, len(nights))
	for i, n := range nights {
		out[i] = NightDTO{
			Date:   n.Date.Format(daterange.Layout),
			Rate:   MapMoney(n.Rate),
			Source: string(n.Source),
			RuleID: string(n.RuleID),
		}
	}
	return out
}

func mapLines(lines []domainaddons.Line) []AddOnLineDTO {
	out := make([]AddOnLineDTO, len(lines))
	for i, l := range lines {
		out[i] = AddOnLineDTO{
			AddOnID:   string(l.AddOnID),
			Name:      l.Name,
			Mode:      string(l.Mode),
			Quantity:  l.Quantity,
			UnitPrice: MapMoney(l.UnitPrice),
			Subtotal:  MapMoney(l.Subtotal),
		}
	}
	return out
}

func bookingIDs(ids []domainbooking.ID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
