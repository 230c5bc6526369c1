package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"resort/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be retried by clients with the same key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // same pointer type the handler returns
}

type IdempotencyRecord struct {
	Key        string
	Command    string
	Payload    []byte
	OccurredAt time.Time
}

// IdempotencyStore keeps results of completed commands. Implementations expire records on
// their own schedule; Save must not overwrite an existing key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	// ErrIdempotencyKeyReused is returned when a key is replayed with a different command.
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key used by another command")
)

// Idempotency replays the stored result of a successful command carrying a known key.
// Failed commands are not recorded, so a client may retry them. Concurrent calls with the
// same key inside this process share one execution.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	var inflight singleflight.Group
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return next.Dispatch(ctx, cmd)
			}
			res, err, _ := inflight.Do(key, func() (any, error) {
				rec, found, err := store.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				if found {
					return replay(rec, idCmd, codec)
				}
				result, err := next.Dispatch(ctx, cmd)
				if err != nil {
					return nil, err
				}
				record := IdempotencyRecord{Key: key, Command: cmd.Key(), OccurredAt: time.Now().UTC()}
				if result != nil {
					if record.Payload, err = codec.Encode(result); err != nil {
						return nil, err
					}
				}
				if err := store.Save(ctx, record); err != nil {
					return nil, err
				}
				return result, nil
			})
			return res, err
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Command != "" && rec.Command != cmd.Key() {
		return nil, ErrIdempotencyKeyReused
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}
