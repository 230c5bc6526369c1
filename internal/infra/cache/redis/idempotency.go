package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"resort/internal/app/middleware"
)

const keyPrefix = "resort:idem:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings so a bad address fails at startup.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// IdempotencyStore keeps command results in Redis with a fixed TTL, shared by every replica.
type IdempotencyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client goredis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

type record struct {
	Command    string    `json:"command"`
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, storageKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("redis: decode idempotency record %s: %w", key, err)
	}
	return middleware.IdempotencyRecord{Key: key, Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt}, true, nil
}

// Save uses SET NX so the first result stored under a key wins.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := json.Marshal(record{Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, storageKey(rec.Key), raw, s.ttl).Err()
}

func storageKey(key string) string {
	return keyPrefix + key
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
