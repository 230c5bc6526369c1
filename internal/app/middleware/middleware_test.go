package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"resort/internal/app/commands"
	"resort/internal/app/middleware"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
	"resort/internal/infra/storage/memory"
)

type result struct {
	ID string `json:"id"`
}

type placeOrder struct {
	IdemKey string
	Name    string
}

func (placeOrder) Key() string              { return "order.place" }
func (c placeOrder) IdempotencyKey() string { return c.IdemKey }
func (placeOrder) ResultPrototype() any     { return &result{} }

type refundOrder struct {
	IdemKey string
}

func (refundOrder) Key() string              { return "order.refund" }
func (c refundOrder) IdempotencyKey() string { return c.IdemKey }
func (refundOrder) ResultPrototype() any     { return &result{} }

func countingBus(t *testing.T, calls *int, fail func(n int) error) *commands.InMemoryBus {
	t.Helper()
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, placeOrder{}.Key(), commands.HandlerFunc[placeOrder, *result](func(_ context.Context, cmd placeOrder) (*result, error) {
		*calls++
		if fail != nil {
			if err := fail(*calls); err != nil {
				return nil, err
			}
		}
		return &result{ID: cmd.Name}, nil
	}))
	commands.RegisterHandler(bus, refundOrder{}.Key(), commands.HandlerFunc[refundOrder, *result](func(context.Context, refundOrder) (*result, error) {
		*calls++
		return &result{ID: "refund"}, nil
	}))
	return bus
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	var calls int
	bus := middleware.ChainCommands(countingBus(t, &calls, nil), middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	ctx := context.Background()

	first, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{IdemKey: "k1", Name: "a"})
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{IdemKey: "k1", Name: "b"})
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if calls != 1 || first.ID != "a" || second.ID != "a" {
		t.Fatalf("calls=%d first=%+v second=%+v, want one call replaying a", calls, first, second)
	}

	if _, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{Name: "c"}); err != nil {
		t.Fatalf("dispatch without key: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, commands without a key must always run", calls)
	}
}

func TestIdempotencyDoesNotRecordFailures(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	fail := func(n int) error {
		if n == 1 {
			return boom
		}
		return nil
	}
	bus := middleware.ChainCommands(countingBus(t, &calls, fail), middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	ctx := context.Background()

	if _, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{IdemKey: "k1", Name: "a"}); !errors.Is(err, boom) {
		t.Fatalf("first dispatch err = %v, want boom", err)
	}
	got, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{IdemKey: "k1", Name: "a"})
	if err != nil || got.ID != "a" || calls != 2 {
		t.Fatalf("retry = %+v, %v after %d calls", got, err, calls)
	}
}

func TestIdempotencyRejectsKeyReusedByAnotherCommand(t *testing.T) {
	var calls int
	bus := middleware.ChainCommands(countingBus(t, &calls, nil), middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	ctx := context.Background()

	if _, err := commands.Dispatch[placeOrder, *result](ctx, bus, placeOrder{IdemKey: "shared", Name: "a"}); err != nil {
		t.Fatalf("place: %v", err)
	}
	_, err := commands.Dispatch[refundOrder, *result](ctx, bus, refundOrder{IdemKey: "shared"})
	if !errors.Is(err, middleware.ErrIdempotencyKeyReused) {
		t.Fatalf("err = %v, want ErrIdempotencyKeyReused", err)
	}
}

type validatorFunc func(ctx context.Context, message any) error

func (f validatorFunc) Validate(ctx context.Context, message any) error { return f(ctx, message) }

func TestValidationStopsInvalidCommands(t *testing.T) {
	var calls int
	invalid := errors.New("invalid")
	v := validatorFunc(func(_ context.Context, message any) error {
		if cmd, ok := message.(placeOrder); ok && cmd.Name == "" {
			return invalid
		}
		return nil
	})
	bus := middleware.ChainCommands(countingBus(t, &calls, nil), middleware.Validation(v))

	if _, err := bus.Dispatch(context.Background(), placeOrder{}); !errors.Is(err, invalid) {
		t.Fatalf("err = %v, want invalid", err)
	}
	if _, err := bus.Dispatch(context.Background(), placeOrder{Name: "ok"}); err != nil {
		t.Fatalf("valid dispatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

type flusherFunc func(ctx context.Context) error

func (f flusherFunc) Flush(ctx context.Context) error { return f(ctx) }

func TestOutboxFlushKeepsResultWhenFlushFails(t *testing.T) {
	var calls, flushes int
	flusher := flusherFunc(func(context.Context) error {
		flushes++
		return errors.New("broker down")
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := middleware.ChainCommands(countingBus(t, &calls, func(n int) error {
		if n == 2 {
			return errors.New("rejected")
		}
		return nil
	}), middleware.OutboxFlush(flusher, logger))

	got, err := commands.Dispatch[placeOrder, *result](context.Background(), bus, placeOrder{Name: "a"})
	if err != nil || got.ID != "a" {
		t.Fatalf("dispatch = %+v, %v", got, err)
	}
	if _, err := bus.Dispatch(context.Background(), placeOrder{Name: "b"}); err == nil {
		t.Fatal("expected handler error")
	}
	if flushes != 1 {
		t.Fatalf("flushed %d times, want only after the successful command", flushes)
	}
}

type lookup struct{}

func (lookup) Key() string { return "lookup" }

func TestReadOnlyQueriesShareOneUnit(t *testing.T) {
	factory := memory.NewUoWFactory(memory.NewStore(), true)
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler(bus, lookup{}.Key(), queries.HandlerFunc[lookup, bool](func(ctx context.Context, _ lookup) (bool, error) {
		outer, ok := uow.FromContext(ctx)
		if !ok {
			return false, errors.New("no unit in context")
		}
		var joined bool
		err := uow.Run(ctx, factory, uow.TxOptions{ReadOnly: true}, func(_ context.Context, unit uow.UnitOfWork) error {
			joined = unit == outer
			return nil
		})
		return joined, err
	}))

	joined, err := queries.Ask[lookup, bool](context.Background(), middleware.ChainQueries(bus, middleware.ReadOnlyQueries(factory)), lookup{})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !joined {
		t.Fatal("nested uow.Run began a second unit")
	}
}
