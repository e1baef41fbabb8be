// Package fallbackstore holds the short-lived, purchase-scoped records
// handed from one checkout step to the next: degraded-gateway payment
// instructions and manual reservations awaiting their checkout view.
// Every record is write-once/read-once: Take returns the value and
// deletes it in the same operation, making the at-most-once handoff
// contract explicit.
package fallbackstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raffle-checkout/internal/models"
)

const (
	fallbackKeyPrefix = "pagamento_fallback_"
	manualKeyPrefix   = "reserva_manual_"
)

// Store is the take-once handoff store.
type Store interface {
	// PutFallback saves degraded-gateway payment instructions for a purchase.
	PutFallback(ctx context.Context, fb *models.FallbackPayment) error
	// TakeFallback reads and deletes the fallback record for a purchase.
	TakeFallback(ctx context.Context, purchaseID string) (*models.FallbackPayment, bool, error)
	// PutManualReservation saves a manual-payment reservation for its checkout view.
	PutManualReservation(ctx context.Context, res *models.Reservation) error
	// TakeManualReservation reads and deletes the stored reservation.
	TakeManualReservation(ctx context.Context, purchaseID string) (*models.Reservation, bool, error)
}

func fallbackKey(purchaseID string) string {
	return fallbackKeyPrefix + purchaseID
}

func manualKey(purchaseID string) string {
	return manualKeyPrefix + purchaseID
}

func marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal handoff record: %w", err)
	}
	return string(b), nil
}

// entry is the in-memory representation used by MemoryStore.
type entry struct {
	payload   string
	expiresAt time.Time
}
