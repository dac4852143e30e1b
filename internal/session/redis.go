package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

const maxWatchRetries = 3

func slotKey(sessionID string, slot domain.Slot) string {
	return fmt.Sprintf("session:%s:slot:%s", sessionID, slot)
}

func slotPattern(sessionID string) string {
	return fmt.Sprintf("session:%s:slot:*", sessionID)
}

func generationKey(sessionID string) string {
	return fmt.Sprintf("session:%s:generation", sessionID)
}

// RedisStore is a SessionStore backed by Redis. Each slot is its own key so
// a clear never races a partial JSON rewrite.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisClient parses the URL, applies pool settings and pings the server.
func NewRedisClient(config domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Set stores value and refreshes the TTL of the generation key with it.
func (r *RedisStore) Set(ctx context.Context, sessionID string, slot domain.Slot, value []byte) error {
	slot = slot.Canonical()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, slotKey(sessionID, slot), value, r.ttl)
	pipe.Expire(ctx, generationKey(sessionID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set session slot %s: %w", slot, err)
	}
	return nil
}

// Get returns the slot value; a missing key is reported as not found.
func (r *RedisStore) Get(ctx context.Context, sessionID string, slot domain.Slot) ([]byte, bool, error) {
	slot = slot.Canonical()

	val, err := r.client.Get(ctx, slotKey(sessionID, slot)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session slot %s: %w", slot, err)
	}
	return val, true, nil
}

// ClearAll deletes every slot key of the session and increments its
// generation.
func (r *RedisStore) ClearAll(ctx context.Context, sessionID string) error {
	iter := r.client.Scan(ctx, 0, slotPattern(sessionID), 0).Iterator()
	pipe := r.client.TxPipeline()

	deleted := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan session keys: %w", err)
	}

	pipe.Incr(ctx, generationKey(sessionID))
	pipe.Expire(ctx, generationKey(sessionID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"deleted_keys": deleted,
	}).Debug("Cleared session slots")
	return nil
}

// Generation reads the generation counter; an absent counter is 0.
func (r *RedisStore) Generation(ctx context.Context, sessionID string) (int64, error) {
	return r.readGeneration(ctx, r.client, sessionID)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) readGeneration(ctx context.Context, c stringGetter, sessionID string) (int64, error) {
	val, err := c.Get(ctx, generationKey(sessionID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session generation: %w", err)
	}
	gen, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session generation %q: %w", val, err)
	}
	return gen, nil
}

// SetIfGeneration writes the slot inside a WATCH on the generation key, so a
// ClearAll that lands in between aborts the write.
func (r *RedisStore) SetIfGeneration(ctx context.Context, sessionID string, generation int64, slot domain.Slot, value []byte) (bool, error) {
	return r.WriteIf(ctx, sessionID, domain.ConditionalWrite{
		Generation: generation,
		Values:     map[domain.Slot][]byte{slot: value},
	})
}

// WriteIf watches the generation key and every Absent slot key, then writes
// all Values in one MULTI. A concurrent clear or a write to an Absent slot
// makes the transaction fail and the checks run again.
func (r *RedisStore) WriteIf(ctx context.Context, sessionID string, w domain.ConditionalWrite) (bool, error) {
	absentKeys := make([]string, 0, len(w.Absent))
	for _, slot := range w.Absent {
		absentKeys = append(absentKeys, slotKey(sessionID, slot.Canonical()))
	}
	watched := append([]string{generationKey(sessionID)}, absentKeys...)
	written := false

	txf := func(tx *redis.Tx) error {
		written = false
		current, err := r.readGeneration(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if current != w.Generation {
			return nil
		}
		if len(absentKeys) > 0 {
			present, err := tx.Exists(ctx, absentKeys...).Result()
			if err != nil {
				return fmt.Errorf("failed to check session slots: %w", err)
			}
			if present > 0 {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for slot, value := range w.Values {
				pipe.Set(ctx, slotKey(sessionID, slot.Canonical()), value, r.ttl)
			}
			pipe.Expire(ctx, generationKey(sessionID), r.ttl)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, watched...)
		if err == nil {
			return written, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return false, fmt.Errorf("failed conditional write: %w", err)
		}
		r.logger.WithField("session_id", sessionID).Debug("Watched session keys changed during conditional write, retrying")
	}

	return false, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
