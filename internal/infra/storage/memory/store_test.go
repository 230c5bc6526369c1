package memory_test

import (
	"context"
	"testing"
	"time"

	"resort/internal/app/uow"
	"resort/internal/domain/rates"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
	"resort/internal/infra/storage/memory"
)

func TestRateRuleWindowIsStoredAsCalendarDays(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rule := rates.Rule{ID: "promo", StartDate: noon, EndDate: noon, Price: money.Must(99900, "USD"), Priority: 9, Active: true}
	if err := store.PutRateRule(ctx, rule); err != nil {
		t.Fatalf("PutRateRule: %v", err)
	}

	unit := begin(t, memory.NewUoWFactory(store, true), uow.TxOptions{ReadOnly: true})
	defer unit.Rollback(ctx)
	dr, _ := daterange.Parse("2025-03-10", "2025-03-11")
	rules, err := unit.Reservations().ActiveRateRules(ctx, "pine", dr)
	if err != nil {
		t.Fatalf("ActiveRateRules: %v", err)
	}
	if len(rules) != 1 || !rules[0].StartDate.Equal(daterange.Day(noon)) || !rules[0].EndDate.Equal(daterange.Day(noon)) {
		t.Fatalf("rules = %+v, want promo truncated to 2025-03-10", rules)
	}
}
