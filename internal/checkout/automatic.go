package checkout

import (
	"context"
	"sync"

	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/countdown"
	"raffle-checkout/internal/models"
	"raffle-checkout/internal/normalize"
	"raffle-checkout/internal/util"

	"go.uber.org/zap"
)

// AutomaticState is the render state of the PIX flow.
type AutomaticState string

const (
	AutomaticAwaiting AutomaticState = "AWAITING"
	AutomaticApproved AutomaticState = "APPROVED"
	AutomaticRefused  AutomaticState = "REFUSED"
	AutomaticExpired  AutomaticState = "EXPIRED"
)

// AutomaticFlow drives a PIX payment to a terminal state. One
// unsolicited status query is issued when the flow starts; every
// further query is user-triggered. That bound on request volume is
// deliberate and must stay: the flow never schedules retries.
type AutomaticFlow struct {
	client      *backend.Client
	purchaseID  string
	reservation *models.Reservation
	timer       *countdown.Countdown
	logger      *zap.Logger

	mu          sync.Mutex
	payment     *models.AutomaticPayment
	initialDone bool
	closed      bool
}

// NewAutomaticFlow builds the flow for a normalized AUTOMATIC
// reservation. The clock is injectable for tests.
func NewAutomaticFlow(client *backend.Client, res *models.Reservation, clock countdown.Clock) *AutomaticFlow {
	return &AutomaticFlow{
		client:      client,
		purchaseID:  res.PurchaseID,
		reservation: res,
		payment:     res.AutomaticPayment,
		timer:       countdown.NewWithClock(res.MinutesRemaining, clock),
		logger:      util.GetLogger(),
	}
}

// InitialCheck issues the single unsolicited status query. A failure is
// swallowed: the payment record may not exist server-side yet, and the
// user can trigger a manual check. No retry is scheduled. Calling it
// again is a no-op.
func (f *AutomaticFlow) InitialCheck(ctx context.Context, token string) {
	f.mu.Lock()
	if f.initialDone || f.closed || f.approvedLocked() {
		f.mu.Unlock()
		return
	}
	f.initialDone = true
	f.mu.Unlock()

	payment, err := f.query(ctx, token)
	if err != nil {
		util.PixChecksTotal.WithLabelValues("initial", "error").Inc()
		f.logger.Debug("Initial PIX check failed, waiting for user-triggered check",
			zap.String("purchase_id", f.purchaseID),
			zap.Error(err))
		return
	}

	outcome := "awaiting"
	if f.apply(payment) {
		outcome = "approved"
	}
	util.PixChecksTotal.WithLabelValues("initial", outcome).Inc()
}

// CheckResult is the outcome of a user-triggered status check.
type CheckResult struct {
	Status   string `json:"status"`
	Approved bool   `json:"approved"`
	// TicketLabels carries the zero-padded assigned numbers once the
	// payment is approved.
	TicketLabels []string `json:"ticket_labels,omitempty"`
}

// Check is the user-triggered status query. On approval the flow is
// terminal and further checks return the cached result without a
// network call. Any failure leaves state unchanged so the user can
// retry.
func (f *AutomaticFlow) Check(ctx context.Context, token string) (*CheckResult, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFlowClosed
	}
	if f.approvedLocked() {
		result := f.resultLocked()
		f.mu.Unlock()
		return result, nil
	}
	f.mu.Unlock()

	payment, err := f.query(ctx, token)
	if err != nil {
		util.PixChecksTotal.WithLabelValues("manual", "error").Inc()
		return nil, err
	}

	approved := f.apply(payment)
	outcome := "awaiting"
	if approved {
		outcome = "approved"
	}
	util.PixChecksTotal.WithLabelValues("manual", outcome).Inc()

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultLocked(), nil
}

// CopyPayload returns the PIX copy-and-paste text. The second return
// is false when no payload is available, which callers treat as a
// no-op.
func (f *AutomaticFlow) CopyPayload() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payment == nil || f.payment.QRPayloadText == "" {
		return "", false
	}
	return f.payment.QRPayloadText, true
}

// Payment returns the current payment snapshot, which may be nil when
// no status query has succeeded yet.
func (f *AutomaticFlow) Payment() *models.AutomaticPayment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payment
}

// State derives the render state. The countdown reaching zero flips the
// local view to expired even before the server confirms; a subsequent
// check reconciles it.
func (f *AutomaticFlow) State() AutomaticState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.payment != nil {
		switch f.payment.Status {
		case models.PixApproved:
			return AutomaticApproved
		case models.PixRefused:
			return AutomaticRefused
		case models.PixExpired:
			return AutomaticExpired
		}
	}
	if f.timer.Expired() {
		return AutomaticExpired
	}
	return AutomaticAwaiting
}

// TimeRemaining formats the payment deadline countdown.
func (f *AutomaticFlow) TimeRemaining() string {
	return f.timer.Remaining()
}

// Close discards the flow. A status query already in flight will find
// the flow closed and drop its result instead of mutating state.
func (f *AutomaticFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *AutomaticFlow) query(ctx context.Context, token string) (*models.AutomaticPayment, error) {
	raw, err := f.client.PaymentStatus(ctx, token, f.purchaseID)
	if err != nil {
		return nil, err
	}
	return normalize.Payment(raw)
}

// apply merges a fresh payment snapshot, reporting whether it is
// approved. Late results after Close are dropped.
func (f *AutomaticFlow) apply(payment *models.AutomaticPayment) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	// Keep QR data from the original charge when the poll response
	// omits it.
	if f.payment != nil {
		if payment.QRImageData == "" {
			payment.QRImageData = f.payment.QRImageData
		}
		if payment.QRPayloadText == "" {
			payment.QRPayloadText = f.payment.QRPayloadText
		}
	}
	f.payment = payment
	return payment.Status == models.PixApproved
}

func (f *AutomaticFlow) approvedLocked() bool {
	return f.payment != nil && f.payment.Status == models.PixApproved
}

func (f *AutomaticFlow) resultLocked() *CheckResult {
	result := &CheckResult{Status: models.PixAwaiting}
	if f.payment != nil {
		result.Status = f.payment.Status
	}
	if f.approvedLocked() {
		result.Approved = true
		result.TicketLabels = models.FormatTicketNumbers(f.reservation.AssignedNumbers)
	}
	return result
}
