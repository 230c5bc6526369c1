package memory

import (
	"context"
	"fmt"
	"time"

	appoutbox "resort/internal/app/outbox"
)

type outboxState string

const (
	outboxNew     outboxState = "NEW"
	outboxClaimed outboxState = "CLAIMED"
	outboxSent    outboxState = "SENT"
	outboxFailed  outboxState = "FAILED"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       outboxState
	attempts    int
	nextAttempt time.Time
	claimedBy   string
	lastError   string
}

// Claim hands the oldest deliverable record to workerID.
func (s *Store) Claim(_ context.Context, workerID string) (*appoutbox.Pending, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if (e.state != outboxNew && e.state != outboxFailed) || e.nextAttempt.After(now) {
			continue
		}
		e.state = outboxClaimed
		e.claimedBy = workerID
		return &appoutbox.Pending{EventRecord: e.record, Attempts: e.attempts}, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.outboxEntryLocked(id)
	if err != nil {
		return err
	}
	e.state = outboxSent
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.outboxEntryLocked(id)
	if err != nil {
		return err
	}
	e.state = outboxFailed
	e.attempts++
	e.nextAttempt = next
	e.lastError = errMsg
	return nil
}

// OutboxRecords lists committed records in insertion order.
func (s *Store) OutboxRecords() []appoutbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appoutbox.EventRecord, len(s.outbox))
	for i, e := range s.outbox {
		out[i] = e.record
	}
	return out
}

// PendingOutbox counts records not yet delivered.
func (s *Store) PendingOutbox() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.outbox {
		if e.state != outboxSent {
			n++
		}
	}
	return n
}

func (s *Store) outboxEntryLocked(id string) (*outboxEntry, error) {
	for _, e := range s.outbox {
		if e.record.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("memory: outbox record %s not found", id)
}
