package fallbackstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"raffle-checkout/internal/models"
)

// MemoryStore is the in-process implementation, used in tests and in
// single-instance deployments without Redis. Same take-once semantics.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory handoff store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// PutFallback saves degraded-gateway payment instructions for a purchase.
func (s *MemoryStore) PutFallback(_ context.Context, fb *models.FallbackPayment) error {
	return s.put(fallbackKey(fb.PurchaseID), fb)
}

// TakeFallback reads and deletes the fallback record for a purchase.
func (s *MemoryStore) TakeFallback(_ context.Context, purchaseID string) (*models.FallbackPayment, bool, error) {
	var fb models.FallbackPayment
	ok, err := s.take(fallbackKey(purchaseID), &fb)
	if !ok || err != nil {
		return nil, false, err
	}
	return &fb, true, nil
}

// PutManualReservation saves a manual-payment reservation for its checkout view.
func (s *MemoryStore) PutManualReservation(_ context.Context, res *models.Reservation) error {
	return s.put(manualKey(res.PurchaseID), res)
}

// TakeManualReservation reads and deletes the stored reservation.
func (s *MemoryStore) TakeManualReservation(_ context.Context, purchaseID string) (*models.Reservation, bool, error) {
	var res models.Reservation
	ok, err := s.take(manualKey(purchaseID), &res)
	if !ok || err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (s *MemoryStore) put(key string, v interface{}) error {
	payload, err := marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{payload: payload, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) take(key string, v interface{}) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if !ok || s.now().After(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal([]byte(e.payload), v); err != nil {
		return false, err
	}
	return true, nil
}
