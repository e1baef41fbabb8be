package fallbackstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raffle-checkout/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps handoff records in Redis so a checkout started on
// one instance can finish on another. Records expire after the TTL even
// if never taken.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// PutFallback saves degraded-gateway payment instructions for a purchase.
func (s *RedisStore) PutFallback(ctx context.Context, fb *models.FallbackPayment) error {
	return s.put(ctx, fallbackKey(fb.PurchaseID), fb)
}

// TakeFallback reads and deletes the fallback record for a purchase.
func (s *RedisStore) TakeFallback(ctx context.Context, purchaseID string) (*models.FallbackPayment, bool, error) {
	var fb models.FallbackPayment
	ok, err := s.take(ctx, fallbackKey(purchaseID), &fb)
	if !ok || err != nil {
		return nil, false, err
	}
	return &fb, true, nil
}

// PutManualReservation saves a manual-payment reservation for its checkout view.
func (s *RedisStore) PutManualReservation(ctx context.Context, res *models.Reservation) error {
	return s.put(ctx, manualKey(res.PurchaseID), res)
}

// TakeManualReservation reads and deletes the stored reservation.
func (s *RedisStore) TakeManualReservation(ctx context.Context, purchaseID string) (*models.Reservation, bool, error) {
	var res models.Reservation
	ok, err := s.take(ctx, manualKey(purchaseID), &res)
	if !ok || err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (s *RedisStore) put(ctx context.Context, key string, v interface{}) error {
	payload, err := marshal(v)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store handoff record %s: %w", key, err)
	}
	return nil
}

// take is a single-round-trip read+delete: GETDEL keeps the
// at-most-once contract even with concurrent readers.
func (s *RedisStore) take(ctx context.Context, key string, v interface{}) (bool, error) {
	payload, err := s.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to take handoff record %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, fmt.Errorf("corrupt handoff record %s: %w", key, err)
	}
	return true, nil
}
