package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paymentStatusServer serves the payment-status endpoint and counts
// requests so tests can assert on request volume.
type paymentStatusServer struct {
	srv      *httptest.Server
	requests int64
	body     atomic.Value
	status   int64
}

func newPaymentStatusServer(t *testing.T) *paymentStatusServer {
	t.Helper()
	ps := &paymentStatusServer{}
	ps.body.Store(`{"id": "pix-1", "status": "AGUARDANDO"}`)
	atomic.StoreInt64(&ps.status, http.StatusOK)

	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&ps.requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(atomic.LoadInt64(&ps.status)))
		_, _ = w.Write([]byte(ps.body.Load().(string)))
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *paymentStatusServer) count() int64 {
	return atomic.LoadInt64(&ps.requests)
}

func automaticReservation() *models.Reservation {
	return &models.Reservation{
		PurchaseID:       "c-1",
		PaymentType:      models.PaymentTypeAutomatic,
		AssignedNumbers:  []int{7},
		TotalAmount:      10.00,
		Status:           models.StatusPending,
		MinutesRemaining: 15,
		AutomaticPayment: &models.AutomaticPayment{
			PaymentID:     "pix-1",
			QRImageData:   "data:image/png;base64,AAAA",
			QRPayloadText: "00020126pixcopypaste",
			Status:        models.PixAwaiting,
		},
	}
}

func TestAutomaticFlowInitialCheckOnce(t *testing.T) {
	ps := newPaymentStatusServer(t)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	ctx := context.Background()
	flow.InitialCheck(ctx, "")
	assert.EqualValues(t, 1, ps.count())

	// Repeat calls are no-ops: no background retry exists, so the
	// request count must stay put.
	flow.InitialCheck(ctx, "")
	flow.InitialCheck(ctx, "")
	assert.EqualValues(t, 1, ps.count())
	assert.Equal(t, AutomaticAwaiting, flow.State())
}

func TestAutomaticFlowInitialCheckFailureIsSilent(t *testing.T) {
	ps := newPaymentStatusServer(t)
	atomic.StoreInt64(&ps.status, http.StatusInternalServerError)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	flow.InitialCheck(context.Background(), "")
	assert.EqualValues(t, 1, ps.count())
	assert.Equal(t, AutomaticAwaiting, flow.State())

	// The user-triggered path still works after the swallowed failure.
	atomic.StoreInt64(&ps.status, http.StatusOK)
	result, err := flow.Check(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.EqualValues(t, 2, ps.count())
}

func TestAutomaticFlowCheckApproval(t *testing.T) {
	ps := newPaymentStatusServer(t)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	ps.body.Store(`{"id": "pix-1", "status": "APROVADO"}`)
	result, err := flow.Check(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, models.PixApproved, result.Status)
	assert.Equal(t, []string{"0007"}, result.TicketLabels)
	assert.Equal(t, AutomaticApproved, flow.State())

	// Approval is terminal: further checks serve the cached result.
	before := ps.count()
	again, err := flow.Check(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, again.Approved)
	assert.EqualValues(t, before, ps.count())
}

func TestAutomaticFlowCheckFailureLeavesState(t *testing.T) {
	ps := newPaymentStatusServer(t)
	atomic.StoreInt64(&ps.status, http.StatusBadGateway)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	_, err := flow.Check(context.Background(), "")
	assert.Error(t, err)
	assert.Equal(t, AutomaticAwaiting, flow.State())

	// The original QR data is untouched by the failed check.
	payload, ok := flow.CopyPayload()
	assert.True(t, ok)
	assert.Equal(t, "00020126pixcopypaste", payload)
}

func TestAutomaticFlowPollKeepsQRData(t *testing.T) {
	ps := newPaymentStatusServer(t)
	// Poll responses omit the QR fields; the flow must keep the ones
	// from the original charge.
	ps.body.Store(`{"id": "pix-1", "status": "AGUARDANDO"}`)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	_, err := flow.Check(context.Background(), "")
	require.NoError(t, err)

	payload, ok := flow.CopyPayload()
	assert.True(t, ok)
	assert.Equal(t, "00020126pixcopypaste", payload)
	assert.Equal(t, "data:image/png;base64,AAAA", flow.Payment().QRImageData)
}

func TestAutomaticFlowClose(t *testing.T) {
	ps := newPaymentStatusServer(t)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)
	flow := NewAutomaticFlow(client, automaticReservation(), time.Now)

	flow.Close()

	_, err := flow.Check(context.Background(), "")
	assert.ErrorIs(t, err, ErrFlowClosed)

	// A closed flow never issues the initial check either.
	flow.InitialCheck(context.Background(), "")
	assert.EqualValues(t, 0, ps.count())
}

func TestAutomaticFlowCountdownExpiry(t *testing.T) {
	ps := newPaymentStatusServer(t)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)

	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	res := automaticReservation()
	res.MinutesRemaining = 2
	flow := NewAutomaticFlow(client, res, clock)

	assert.Equal(t, "2:00", flow.TimeRemaining())
	assert.Equal(t, AutomaticAwaiting, flow.State())

	current = current.Add(3 * time.Minute)
	assert.Equal(t, AutomaticExpired, flow.State())
	assert.Equal(t, "0:00", flow.TimeRemaining())
}

func TestAutomaticFlowCopyPayloadMissing(t *testing.T) {
	ps := newPaymentStatusServer(t)
	client := backend.NewClient(ps.srv.URL, 2*time.Second, false)

	res := automaticReservation()
	res.AutomaticPayment = nil
	flow := NewAutomaticFlow(client, res, time.Now)

	_, ok := flow.CopyPayload()
	assert.False(t, ok)
}
