package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"smena/internal/models"
)

// RedisStore implements Store on Redis. Optimistic concurrency comes from
// WATCH: every condition key is watched, conditions are re-checked inside
// the transaction callback, and the writes go out as one MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Commit applies tx atomically. A failed condition or a concurrent write to
// a watched key returns ErrTxConflict with nothing written.
func (s *RedisStore) Commit(ctx context.Context, tx Tx) error {
	watch := make([]string, 0, len(tx.Conds))
	for _, c := range tx.Conds {
		watch = append(watch, c.Key)
	}

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		for _, c := range tx.Conds {
			val, err := rtx.Get(ctx, c.Key).Result()
			switch {
			case err == redis.Nil:
				if !c.Absent {
					return ErrTxConflict
				}
			case err != nil:
				return fmt.Errorf("read condition key %s: %w", c.Key, err)
			default:
				if c.Absent || val != c.Equals {
					return ErrTxConflict
				}
			}
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, kv := range tx.Sets {
				pipe.Set(ctx, kv.Key, kv.Value, 0)
			}
			for _, key := range tx.Dels {
				pipe.Del(ctx, key)
			}
			for _, z := range tx.ZAdds {
				pipe.ZAdd(ctx, z.Key, redis.Z{Score: float64(z.Score), Member: z.Member})
			}
			for _, z := range tx.ZRems {
				pipe.ZRem(ctx, z.Key, z.Member)
			}
			return nil
		})
		return err
	}, watch...)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrTxConflict
	}
	return err
}

// GetEntry loads a shift entry document.
func (s *RedisStore) GetEntry(ctx context.Context, id string) (*models.ShiftEntry, error) {
	doc, err := s.client.Get(ctx, EntryKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return DecodeEntry(doc)
}

// GetOpenPointer returns the open entry id for staffID, or "".
func (s *RedisStore) GetOpenPointer(ctx context.Context, staffID string) (string, error) {
	id, err := s.client.Get(ctx, OpenKey(staffID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get open pointer for %s: %w", staffID, err)
	}
	return id, nil
}

// DayEntryIDs enumerates a day index ordered by clock-in time ascending.
func (s *RedisStore) DayEntryIDs(ctx context.Context, indexKey string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range index %s: %w", indexKey, err)
	}
	return ids, nil
}

// Ping reports store availability, used by readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// EncodeEntry serializes a shift entry document.
func EncodeEntry(e *models.ShiftEntry) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	return string(data), nil
}

// DecodeEntry deserializes a shift entry document.
func DecodeEntry(doc string) (*models.ShiftEntry, error) {
	var e models.ShiftEntry
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}
