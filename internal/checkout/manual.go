package checkout

import (
	"context"
	"io"
	"strings"
	"sync"

	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/countdown"
	"raffle-checkout/internal/models"
	"raffle-checkout/internal/util"
)

// ManualState is the render state of the manual-transfer flow.
type ManualState string

const (
	ManualAwaiting    ManualState = "AWAITING"
	ManualSubmitted   ManualState = "SUBMITTED"
	ManualExpired     ManualState = "EXPIRED"
	ManualConfigError ManualState = "CONFIG_ERROR"
)

// MaxProofSize is the default proof-of-payment size limit: 5 MiB.
const MaxProofSize = 5 * 1024 * 1024

// ManualFlow displays payee instructions and accepts exactly one
// proof-of-payment image per reservation. Validation here is pre-flight
// only; the backend stays authoritative.
type ManualFlow struct {
	client      *backend.Client
	reservation *models.Reservation
	timer       *countdown.Countdown
	maxSize     int64

	mu        sync.Mutex
	submitted bool
}

// NewManualFlow builds the flow for a normalized MANUAL reservation
// (or an AUTOMATIC one under fallback override). maxSize <= 0 applies
// the default limit.
func NewManualFlow(client *backend.Client, res *models.Reservation, maxSize int64, clock countdown.Clock) *ManualFlow {
	if maxSize <= 0 {
		maxSize = MaxProofSize
	}
	return &ManualFlow{
		client:      client,
		reservation: res,
		timer:       countdown.NewWithClock(res.MinutesRemaining, clock),
		maxSize:     maxSize,
	}
}

// Instructions returns the payee details, or ErrInstructionsMissing
// when the reservation arrived without them. The missing case is a
// terminal configuration-error display, guarding against best-effort
// field mapping failing silently upstream.
func (f *ManualFlow) Instructions() (*models.ManualInstructions, error) {
	if f.reservation.ManualInstructions == nil {
		return nil, ErrInstructionsMissing
	}
	return f.reservation.ManualInstructions, nil
}

// ValidateProof applies the pre-flight file constraints: image MIME
// type and size at most the limit. Runs before any network call.
func (f *ManualFlow) ValidateProof(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		util.ProofRejectedTotal.WithLabelValues("not_image").Inc()
		return ErrNotImage
	}
	if size > f.maxSize {
		util.ProofRejectedTotal.WithLabelValues("too_large").Inc()
		return ErrProofTooLarge
	}
	return nil
}

// SubmitProof uploads one proof image. Success is terminal: further
// submissions are rejected. Failure leaves the flow open so the user
// can retry.
func (f *ManualFlow) SubmitProof(ctx context.Context, token, filename, contentType string, size int64, file io.Reader) (*models.ProofUpload, error) {
	f.mu.Lock()
	if f.submitted {
		f.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	f.mu.Unlock()

	if f.timer.Expired() {
		return nil, ErrReservationExpired
	}
	if _, err := f.Instructions(); err != nil {
		return nil, err
	}
	if err := f.ValidateProof(contentType, size); err != nil {
		return nil, err
	}

	ack, err := f.client.UploadProof(ctx, token, f.reservation.PurchaseID, filename, file)
	if err != nil {
		util.ProofUploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	f.mu.Lock()
	f.submitted = true
	f.mu.Unlock()

	util.ProofUploadsTotal.WithLabelValues("success").Inc()
	return ack, nil
}

// State derives the render state. Expiry releases the reserved numbers;
// submission is a terminal awaiting-approval display.
func (f *ManualFlow) State() ManualState {
	f.mu.Lock()
	submitted := f.submitted
	f.mu.Unlock()

	if submitted {
		return ManualSubmitted
	}
	if f.reservation.ManualInstructions == nil {
		return ManualConfigError
	}
	if f.timer.Expired() || f.reservation.Status == models.StatusExpired {
		return ManualExpired
	}
	return ManualAwaiting
}

// CopyPayeeKey returns the payee transfer key; false when absent.
func (f *ManualFlow) CopyPayeeKey() (string, bool) {
	if f.reservation.ManualInstructions == nil || f.reservation.ManualInstructions.PayeeKey == "" {
		return "", false
	}
	return f.reservation.ManualInstructions.PayeeKey, true
}

// TimeRemaining formats the payment deadline countdown.
func (f *ManualFlow) TimeRemaining() string {
	return f.timer.Remaining()
}

// Reservation returns the underlying reservation snapshot.
func (f *ManualFlow) Reservation() *models.Reservation {
	return f.reservation
}
