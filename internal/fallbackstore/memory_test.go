package fallbackstore

import (
	"context"
	"testing"
	"time"

	"raffle-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreTakeOnce(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	fb := &models.FallbackPayment{
		PurchaseID: "c-1",
		Reason:     "GATEWAY_INDISPONIVEL",
		PayeeKey:   "seller@example.com",
		Amount:     30.00,
	}
	require.NoError(t, store.PutFallback(ctx, fb))

	taken, ok, err := store.TakeFallback(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GATEWAY_INDISPONIVEL", taken.Reason)
	assert.Equal(t, "seller@example.com", taken.PayeeKey)

	// The first take consumed the record.
	_, ok, err = store.TakeFallback(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreManualReservationHandoff(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	res := &models.Reservation{
		PurchaseID:           "c-7",
		PaymentType:          models.PaymentTypeManual,
		RequestedNumberCount: 3,
		AssignedNumbers:      []int{4, 8, 12},
		TotalAmount:          30.00,
		Status:               models.StatusPending,
		ManualInstructions: &models.ManualInstructions{
			PayeeKey: "seller@example.com",
			Amount:   30.00,
		},
	}
	require.NoError(t, store.PutManualReservation(ctx, res))

	taken, ok, err := store.TakeManualReservation(ctx, "c-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, taken.RequestedNumberCount)
	assert.Equal(t, 30.00, taken.TotalAmount)
	require.NotNil(t, taken.ManualInstructions)
	assert.Equal(t, "seller@example.com", taken.ManualInstructions.PayeeKey)

	_, ok, err = store.TakeManualReservation(ctx, "c-7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	// A fallback record and a manual reservation for the same purchase
	// live under different keys.
	require.NoError(t, store.PutFallback(ctx, &models.FallbackPayment{PurchaseID: "c-1"}))
	require.NoError(t, store.PutManualReservation(ctx, &models.Reservation{PurchaseID: "c-1"}))

	_, ok, err := store.TakeFallback(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = store.TakeManualReservation(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(10 * time.Minute)
	ctx := context.Background()

	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.PutFallback(ctx, &models.FallbackPayment{PurchaseID: "c-1"}))

	current = current.Add(11 * time.Minute)
	_, ok, err := store.TakeFallback(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreMissIsNotAnError(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	_, ok, err := store.TakeFallback(context.Background(), "never-stored")
	assert.NoError(t, err)
	assert.False(t, ok)
}
