package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxRow struct {
	ID          string            `gorm:"primaryKey;size:64"`
	Name        string            `gorm:"size:128;not null"`
	Payload     []byte            `gorm:"type:blob"`
	OccurredAt  time.Time         `gorm:"not null"`
	Aggregate   string            `gorm:"size:64"`
	Headers     map[string]string `gorm:"serializer:json;type:json"`
	State       string            `gorm:"size:16;not null;index:idx_outbox_due,priority:1"`
	Attempts    int               `gorm:"not null;default:0"`
	NextAttempt time.Time         `gorm:"column:next_attempt_at;index:idx_outbox_due,priority:2"`
	ClaimedBy   string            `gorm:"size:64"`
	ClaimedAt   *time.Time
	SentAt      *time.Time
	LastError   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
}

func (outboxRow) TableName() string { return "app_outbox" }

// OutboxStore writes event records in the booking transaction and serves them to the relay.
type OutboxStore struct {
	db       *gorm.DB
	readOnly bool
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	if s.readOnly {
		return uow.ErrReadOnly
	}
	now := time.Now().UTC()
	row := outboxRow{
		ID:          rec.ID,
		Name:        rec.Name,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt.UTC(),
		Aggregate:   rec.Aggregate,
		Headers:     rec.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return mapError(s.db.WithContext(ctx).Create(&row).Error)
}

// Claim locks the oldest due record with SKIP LOCKED so concurrent relays never share one.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Pending, error) {
	var claimed *appoutbox.Pending
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var row outboxRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state IN ? AND next_attempt_at <= ?", []string{stateNew, stateFailed}, now).
			Order("created_at").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&outboxRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"state":      stateClaimed,
			"claimed_by": workerID,
			"claimed_at": now,
		}).Error; err != nil {
			return err
		}
		claimed = &appoutbox.Pending{
			EventRecord: appoutbox.EventRecord{
				ID:         row.ID,
				Name:       row.Name,
				Payload:    row.Payload,
				OccurredAt: row.OccurredAt.UTC(),
				Aggregate:  row.Aggregate,
				Headers:    row.Headers,
			},
			Attempts: row.Attempts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   stateSent,
		"sent_at": time.Now().UTC(),
	}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           stateFailed,
		"next_attempt_at": next.UTC(),
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
}
