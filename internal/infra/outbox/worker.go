package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appoutbox "resort/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Source is the durable side of the outbox as seen by the relay.
type Source interface {
	Claim(ctx context.Context, workerID string) (*appoutbox.Pending, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed records to a Producer as CloudEvents. Run polls on Interval;
// Flush drains whatever is deliverable right now.
type Worker struct {
	Store       Source
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Now         func() time.Time

	idOnce sync.Once
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil && ctx.Err() == nil {
				w.logger().WarnContext(ctx, "outbox relay pass failed", slog.Any("error", err))
			}
		}
	}
}

// Flush publishes deliverable records until none are left. A record that fails is
// rescheduled and not retried within the same pass.
func (w *Worker) Flush(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := w.Store.Claim(ctx, w.workerID())
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if _, again := seen[rec.ID]; again {
			return w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), "retry deferred to next pass")
		}
		seen[rec.ID] = struct{}{}
		if err := w.deliver(ctx, rec); err != nil {
			return err
		}
	}
}

func (w *Worker) deliver(ctx context.Context, rec *appoutbox.Pending) error {
	payload, headers, err := w.formatPayload(rec)
	if err != nil {
		w.logger().ErrorContext(ctx, "outbox record malformed", slog.String("id", rec.ID), slog.String("event", rec.Name), slog.Any("error", err))
		return w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	if err := w.Producer.Publish(ctx, w.topicFor(rec.Name), rec.Aggregate, payload, headers); err != nil {
		w.logger().WarnContext(ctx, "outbox publish failed",
			slog.String("id", rec.ID),
			slog.String("event", rec.Name),
			slog.Int("attempts", rec.Attempts+1),
			slog.Any("error", err),
		)
		return w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	return w.Store.MarkSent(ctx, rec.ID)
}

func (w *Worker) formatPayload(rec *appoutbox.Pending) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "booking.confirmed" to "<prefix>booking.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	w.idOnce.Do(func() {
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
	})
	return w.ID
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return w.now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return w.now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://resort"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

var _ appoutbox.Flusher = (*Worker)(nil)
