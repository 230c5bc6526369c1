package settings

import (
	"time"

	"resort/internal/domain/shared/money"
)

type DepositType string

const (
	DepositPercentage DepositType = "percentage"
	DepositFixed      DepositType = "fixed"
)

// DepositPolicy describes how much of the total is due upfront.
// Percentage is a whole percent used by percentage policies; FixedAmount is used by fixed ones.
type DepositPolicy struct {
	Type        DepositType
	Percentage  int64
	FixedAmount money.Money
}

// Settings is the property-wide configuration passed explicitly into pricing.
type Settings struct {
	Deposit      DepositPolicy
	CheckInTime  string
	CheckOutTime string
	WeekendDays  []time.Weekday
}

// DefaultWeekendDays are the nights charged at the weekend price: Friday and Saturday nights.
var DefaultWeekendDays = []time.Weekday{time.Friday, time.Saturday}

// Default returns the settings used when the store has none configured.
func Default() Settings {
	return Settings{
		Deposit:      DepositPolicy{Type: DepositPercentage, Percentage: 30},
		CheckInTime:  "14:00",
		CheckOutTime: "11:00",
		WeekendDays:  append([]time.Weekday(nil), DefaultWeekendDays...),
	}
}

// IsWeekend reports whether the night starting on date is billed at the weekend price.
func (s Settings) IsWeekend(date time.Time) bool {
	days := s.WeekendDays
	if days == nil {
		days = DefaultWeekendDays
	}
	wd := date.Weekday()
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}
