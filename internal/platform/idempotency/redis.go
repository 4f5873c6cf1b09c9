package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "upfront:idempotency:"

// RedisStore keeps records in redis. Keys expire natively so CleanupExpired is a no-op.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client, prefix: redisKeyPrefix}, nil
}

// Reserve implements Store. SETNX decides ownership; a lost race reads the stored record.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.prefix + storageKey(key)

	// The existing key may expire between SETNX and GET, so a second attempt is allowed.
	for attempt := 0; attempt < 2; attempt++ {
		record := newPendingRecord(key, fingerprint, now, ttl)
		payload, err := json.Marshal(record)
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
		}
		created, err := s.client.SetNX(ctx, redisKey, payload, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if created {
			return Reservation{State: ReservationStateNew, Record: record}, nil
		}

		existing, err := s.load(ctx, redisKey)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Reservation{}, err
		}
		return reservationFor(existing, fingerprint)
	}
	return Reservation{}, errors.New("idempotency: reservation contended")
}

// SaveResponse implements Store.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.prefix + storageKey(key)

	record, err := s.load(ctx, redisKey)
	switch {
	case errors.Is(err, redis.Nil):
		record = Record{Key: key, Fingerprint: fingerprint}
	case err != nil:
		return err
	case record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	}

	payload, err := json.Marshal(completeRecord(record, resp, now, ttl))
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key, _ string) error {
	if err := s.client.Del(ctx, s.prefix+storageKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// CleanupExpired implements Store.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (s *RedisStore) load(ctx context.Context, redisKey string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, redis.Nil
		}
		return Record{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, nil
}
