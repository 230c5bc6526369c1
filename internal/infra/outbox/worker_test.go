package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
	"resort/internal/infra/outbox"
	"resort/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return p.err
}

func commitRecords(t *testing.T, store *memory.Store, recs ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	unit, err := memory.NewUoWFactory(store, true).Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, rec := range recs {
		if err := unit.Outbox().Add(ctx, rec); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"b-1"}`),
		OccurredAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Aggregate:  "b-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}
}

func TestWorkerFlushPublishesCloudEvents(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("e-1", "booking.requested"), record("e-2", "booking.confirmed"))

	producer := &fakeProducer{}
	w := &outbox.Worker{Store: store, Producer: producer, TopicPrefix: "dev."}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(producer.sent))
	}
	first := producer.sent[0]
	if first.topic != "dev.booking.events.v1" {
		t.Fatalf("unexpected topic %q", first.topic)
	}
	if first.key != "b-1" {
		t.Fatalf("unexpected key %q", first.key)
	}
	if first.headers["content-type"] != "application/cloudevents+json" {
		t.Fatalf("missing content type header: %v", first.headers)
	}
	var evt map[string]any
	if err := json.Unmarshal(first.payload, &evt); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if evt["type"] != "booking.requested.v1" || evt["source"] != "app://resort" || evt["id"] != "e-1" {
		t.Fatalf("unexpected envelope: %v", evt)
	}
	if evt["traceparent"] != "00-abc-def-01" {
		t.Fatalf("traceparent not propagated: %v", evt)
	}
	data, ok := evt["data"].(map[string]any)
	if !ok || data["booking_id"] != "b-1" {
		t.Fatalf("unexpected data: %v", evt["data"])
	}
	if n := store.PendingOutbox(); n != 0 {
		t.Fatalf("expected empty outbox, got %d pending", n)
	}
}

func TestWorkerFlushReschedulesFailures(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("e-1", "booking.cancelled"))

	producer := &fakeProducer{err: errors.New("broker down")}
	w := &outbox.Worker{Store: store, Producer: producer, Backoff: []time.Duration{time.Hour}}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(producer.sent))
	}
	if n := store.PendingOutbox(); n != 1 {
		t.Fatalf("expected record to stay pending, got %d", n)
	}

	// Not due yet, so a second pass leaves it alone.
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("record retried before its backoff elapsed")
	}
}

func TestWorkerFlushDoesNotSpinOnImmediateRetry(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("e-1", "booking.cancelled"))

	producer := &fakeProducer{err: errors.New("broker down")}
	w := &outbox.Worker{Store: store, Producer: producer, Backoff: []time.Duration{0}}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected one publish per pass, got %d", len(producer.sent))
	}
}

func TestWorkerMalformedPayloadIsNotPublished(t *testing.T) {
	store := memory.NewStore()
	bad := record("e-1", "booking.requested")
	bad.Payload = []byte("not json")
	commitRecords(t, store, bad)

	producer := &fakeProducer{}
	w := &outbox.Worker{Store: store, Producer: producer, Backoff: []time.Duration{time.Hour}}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(producer.sent) != 0 {
		t.Fatalf("malformed record should not reach the producer")
	}
	if n := store.PendingOutbox(); n != 1 {
		t.Fatalf("expected malformed record to stay pending, got %d", n)
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &outbox.Worker{}
	if err := w.Flush(context.Background()); !errors.Is(err, outbox.ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
	if err := w.Run(context.Background()); !errors.Is(err, outbox.ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("e-1", "booking.requested"))
	producer := &fakeProducer{}
	w := &outbox.Worker{Store: store, Producer: producer, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for store.PendingOutbox() != 0 {
		select {
		case <-deadline:
			t.Fatal("relay did not deliver in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
