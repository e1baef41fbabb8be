package checkout

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/broker"
	"raffle-checkout/internal/countdown"
	"raffle-checkout/internal/fallbackstore"
	"raffle-checkout/internal/models"
	"raffle-checkout/internal/normalize"
	"raffle-checkout/internal/store"
	"raffle-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tune the checkout service.
type Options struct {
	// MaxProofSizeBytes caps proof uploads; zero applies the default.
	MaxProofSizeBytes int64
	// MinObservationChars is the minimum trimmed length of a review
	// observation; zero applies the default of 10.
	MinObservationChars int
	// ReservationTTLMinutes is the deadline assumed when the backend
	// omits one for a non-free reservation.
	ReservationTTLMinutes int
	// Clock is injectable for tests; nil means time.Now.
	Clock countdown.Clock
}

// Service orchestrates the checkout of a reservation: reserve, branch
// on payment type, drive the selected flow to a terminal state, and
// bridge the degraded-gateway fallback path. The session journal and
// event publisher are optional collaborators: their failures are
// logged, never fatal, because the server remains the single source of
// truth.
type Service struct {
	client   *backend.Client
	handoff  fallbackstore.Store
	sessions *store.Store
	events   *broker.EventPublisher
	logger   *zap.Logger
	opts     Options

	mu    sync.Mutex
	flows map[string]*flowEntry
}

type flowEntry struct {
	flow      Flow
	automatic *AutomaticFlow
	manual    *ManualFlow
	free      *FreeFlow
	fallback  bool
}

// NewService creates a checkout service.
func NewService(
	client *backend.Client,
	handoff fallbackstore.Store,
	sessions *store.Store,
	events *broker.EventPublisher,
	opts Options,
) *Service {
	if opts.MinObservationChars <= 0 {
		opts.MinObservationChars = 10
	}
	if opts.MaxProofSizeBytes <= 0 {
		opts.MaxProofSizeBytes = MaxProofSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		client:   client,
		handoff:  handoff,
		sessions: sessions,
		events:   events,
		logger:   util.GetLogger(),
		opts:     opts,
		flows:    make(map[string]*flowEntry),
	}
}

// StartCheckoutRequest reserves numbers on a raffle.
type StartCheckoutRequest struct {
	RaffleID string `json:"raffle_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Numbers  []int  `json:"numbers,omitempty"`
}

// StartCheckoutResponse reports the reservation and the flow that
// handles it next.
type StartCheckoutResponse struct {
	Reservation    *models.Reservation `json:"reservation"`
	Flow           Flow                `json:"flow"`
	FallbackActive bool                `json:"fallback_active,omitempty"`
}

// StartCheckout reserves numbers and prepares the payment step. For
// AUTOMATIC raffles it generates the PIX charge immediately; when the
// gateway is degraded and the backend answers with manual instructions
// instead, those are parked in the handoff store for the checkout view
// and the flow is overridden to manual.
func (s *Service) StartCheckout(ctx context.Context, token string, req *StartCheckoutRequest) (*StartCheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.StartCheckout")
	defer span.End()

	raw, location, err := s.client.Reserve(ctx, token, &backend.ReserveRequest{
		RaffleID:       req.RaffleID,
		Quantity:       req.Quantity,
		Numbers:        req.Numbers,
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("reserve").Inc()
		return nil, fmt.Errorf("failed to reserve numbers: %w", err)
	}

	res, err := normalize.Reservation(raw, location)
	if err != nil {
		util.NormalizeFailuresTotal.Inc()
		util.ReservationsFailedTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}
	if res.RaffleID == "" {
		res.RaffleID = req.RaffleID
	}
	if res.RequestedNumberCount == 0 {
		res.RequestedNumberCount = req.Quantity
	}
	if res.MinutesRemaining == 0 && res.PaymentType != models.PaymentTypeFree {
		res.MinutesRemaining = s.opts.ReservationTTLMinutes
	}

	util.ReservationsCreatedTotal.WithLabelValues(string(res.PaymentType)).Inc()
	s.logger.Info("Reservation created",
		zap.String("purchase_id", res.PurchaseID),
		zap.String("raffle_id", res.RaffleID),
		zap.String("payment_type", string(res.PaymentType)),
		zap.Int("numbers", res.RequestedNumberCount))

	s.journalSession(ctx, res, false)
	s.publishReservationCreated(ctx, res)

	resp := &StartCheckoutResponse{Reservation: res}

	switch res.PaymentType {
	case models.PaymentTypeAutomatic:
		fallbackActive, err := s.preparePix(ctx, token, res)
		if err != nil {
			return nil, err
		}
		resp.FallbackActive = fallbackActive
		resp.Flow = SelectFlow(res, fallbackActive)

	case models.PaymentTypeManual:
		// Parked for the manual checkout view, which takes it exactly
		// once on load.
		if err := s.handoff.PutManualReservation(ctx, res); err != nil {
			s.logger.Error("Failed to park manual reservation",
				zap.String("purchase_id", res.PurchaseID),
				zap.Error(err))
		}
		resp.Flow = FlowManual

	case models.PaymentTypeFree:
		resp.Flow = FlowFree

	default:
		resp.Flow = FlowUnknown
	}

	return resp, nil
}

// preparePix generates the PIX charge. A fallback-shaped answer (the
// gateway is down but the backend handed back manual instructions) is
// parked in the handoff store; it reports whether that happened.
func (s *Service) preparePix(ctx context.Context, token string, res *models.Reservation) (bool, error) {
	raw, err := s.client.GeneratePix(ctx, token, res.PurchaseID)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("pix_generation").Inc()
		return false, fmt.Errorf("failed to generate PIX payment: %w", err)
	}

	if fb, ok := normalize.Fallback(raw, res.PurchaseID); ok {
		util.FallbackActivationsTotal.Inc()
		s.logger.Warn("Payment gateway degraded, falling back to manual instructions",
			zap.String("purchase_id", res.PurchaseID),
			zap.String("reason", fb.Reason))

		if err := s.handoff.PutFallback(ctx, fb); err != nil {
			s.logger.Error("Failed to park fallback instructions",
				zap.String("purchase_id", res.PurchaseID),
				zap.Error(err))
		}
		s.markManualOverride(ctx, res.PurchaseID)
		s.publishFallbackActivated(ctx, fb)
		return true, nil
	}

	payment, err := normalize.Payment(raw)
	if err != nil {
		util.NormalizeFailuresTotal.Inc()
		return false, err
	}
	res.AutomaticPayment = payment
	return false, nil
}

// CheckoutView is the state a checkout page renders from.
type CheckoutView struct {
	Reservation    *models.Reservation `json:"reservation"`
	Flow           Flow                `json:"flow"`
	State          string              `json:"state"`
	TimeRemaining  string              `json:"time_remaining,omitempty"`
	TicketLabels   []string            `json:"ticket_labels"`
	FallbackActive bool                `json:"fallback_active,omitempty"`
}

// LoadCheckout assembles the view for a purchase. The first load of an
// AUTOMATIC checkout issues the flow's single unsolicited status query;
// later loads reuse the live flow and stay quiet. A parked fallback or
// manual reservation is taken (read+delete) and merged here; the merge
// renders the manual flow and never re-triggers PIX generation.
func (s *Service) LoadCheckout(ctx context.Context, token, purchaseID string) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.LoadCheckout")
	defer span.End()

	s.mu.Lock()
	entry, ok := s.flows[purchaseID]
	s.mu.Unlock()
	if ok {
		return s.view(entry), nil
	}

	res, fallbackActive, err := s.resolveReservation(ctx, token, purchaseID)
	if err != nil {
		return nil, err
	}

	entry = s.buildFlow(res, fallbackActive)

	s.mu.Lock()
	if existing, ok := s.flows[purchaseID]; ok {
		// Lost a race with a concurrent load; use the winner.
		entry = existing
	} else {
		s.flows[purchaseID] = entry
	}
	s.mu.Unlock()

	if entry.automatic != nil {
		entry.automatic.InitialCheck(ctx, token)
	}

	return s.view(entry), nil
}

// resolveReservation finds the reservation for a checkout view: a
// parked manual reservation wins, then the backend projection, with
// any parked fallback instructions merged in.
func (s *Service) resolveReservation(ctx context.Context, token, purchaseID string) (*models.Reservation, bool, error) {
	if parked, ok, err := s.handoff.TakeManualReservation(ctx, purchaseID); err != nil {
		s.logger.Error("Failed to take parked manual reservation", zap.Error(err))
	} else if ok {
		return parked, false, nil
	}

	raw, err := s.client.FetchPurchase(ctx, token, purchaseID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch purchase: %w", err)
	}
	res, err := normalize.Reservation(raw, "")
	if err != nil {
		util.NormalizeFailuresTotal.Inc()
		return nil, false, err
	}

	fb, ok, err := s.handoff.TakeFallback(ctx, purchaseID)
	if err != nil {
		s.logger.Error("Failed to take fallback instructions", zap.Error(err))
		return res, false, nil
	}
	if !ok {
		return res, false, nil
	}

	// Degraded-gateway merge: manual instructions override the nominal
	// AUTOMATIC type for display, and no new PIX attempt is made.
	res.ManualInstructions = fb.Instructions()
	res.AutomaticPayment = nil
	return res, true, nil
}

func (s *Service) buildFlow(res *models.Reservation, fallbackActive bool) *flowEntry {
	entry := &flowEntry{
		flow:     SelectFlow(res, fallbackActive),
		fallback: fallbackActive,
	}
	switch entry.flow {
	case FlowAutomatic:
		entry.automatic = NewAutomaticFlow(s.client, res, s.opts.Clock)
	case FlowManual:
		entry.manual = NewManualFlow(s.client, res, s.opts.MaxProofSizeBytes, s.opts.Clock)
	case FlowFree:
		entry.free = NewFreeFlow(res)
	}
	return entry
}

func (s *Service) view(entry *flowEntry) *CheckoutView {
	view := &CheckoutView{Flow: entry.flow, FallbackActive: entry.fallback}
	switch entry.flow {
	case FlowAutomatic:
		res := entry.automatic.reservation
		view.Reservation = res
		view.State = string(entry.automatic.State())
		view.TimeRemaining = entry.automatic.TimeRemaining()
		view.TicketLabels = models.FormatTicketNumbers(res.AssignedNumbers)
	case FlowManual:
		res := entry.manual.Reservation()
		view.Reservation = res
		view.State = string(entry.manual.State())
		view.TimeRemaining = entry.manual.TimeRemaining()
		view.TicketLabels = models.FormatTicketNumbers(res.AssignedNumbers)
	case FlowFree:
		view.Reservation = entry.free.Reservation()
		view.State = "CONFIRMED"
		view.TicketLabels = entry.free.Confirmation()
	default:
		view.State = "UNKNOWN_TYPE"
	}
	return view
}

// VerifyPayment runs the user-triggered PIX status check.
func (s *Service) VerifyPayment(ctx context.Context, token, purchaseID string) (*CheckResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VerifyPayment")
	defer span.End()

	flow, err := s.automaticFlow(purchaseID)
	if err != nil {
		return nil, err
	}

	result, err := flow.Check(ctx, token)
	if err != nil {
		return nil, err
	}
	if result.Approved {
		s.settleSession(ctx, purchaseID, models.StatusPaid)
	}
	return result, nil
}

// PixPayload returns the copy-and-paste PIX code for a checkout; ok is
// false when none is available.
func (s *Service) PixPayload(purchaseID string) (string, bool, error) {
	flow, err := s.automaticFlow(purchaseID)
	if err != nil {
		return "", false, err
	}
	payload, ok := flow.CopyPayload()
	return payload, ok, nil
}

// SubmitProof uploads the proof-of-payment image for a manual checkout.
func (s *Service) SubmitProof(ctx context.Context, token, purchaseID, filename, contentType string, size int64, file io.Reader) (*models.ProofUpload, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SubmitProof")
	defer span.End()

	s.mu.Lock()
	entry, ok := s.flows[purchaseID]
	s.mu.Unlock()
	if !ok || entry.manual == nil {
		return nil, ErrCheckoutNotFound
	}

	ack, err := entry.manual.SubmitProof(ctx, token, filename, contentType, size, file)
	if err != nil {
		return nil, err
	}

	s.settleSession(ctx, purchaseID, models.StatusConfirmed)
	s.publishProofSubmitted(ctx, ack)
	return ack, nil
}

// CloseCheckout discards the live flow for a purchase, e.g. when the
// user navigates away. In-flight status checks see the closed flow and
// drop their results.
func (s *Service) CloseCheckout(purchaseID string) {
	s.mu.Lock()
	entry, ok := s.flows[purchaseID]
	if ok {
		delete(s.flows, purchaseID)
	}
	s.mu.Unlock()

	if ok && entry.automatic != nil {
		entry.automatic.Close()
	}
}

// ReviewPurchase applies a seller's approve/reject decision. The
// observation is validated locally (trimmed, at least the configured
// minimum length) before any network call.
func (s *Service) ReviewPurchase(ctx context.Context, token, purchaseID, observation string, approve bool) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ReviewPurchase")
	defer span.End()

	observation = strings.TrimSpace(observation)
	if len(observation) < s.opts.MinObservationChars {
		return fmt.Errorf("%w: need at least %d characters", ErrObservationTooShort, s.opts.MinObservationChars)
	}

	var err error
	decision := "rejected"
	if approve {
		decision = "approved"
		err = s.client.ApprovePurchase(ctx, token, purchaseID, observation)
	} else {
		err = s.client.RejectPurchase(ctx, token, purchaseID, observation)
	}
	if err != nil {
		return err
	}

	util.PurchasesReviewedTotal.WithLabelValues(decision).Inc()
	if approve {
		s.settleSession(ctx, purchaseID, models.StatusPaid)
	} else {
		s.settleSession(ctx, purchaseID, models.StatusCanceled)
	}
	s.publishPurchaseReviewed(ctx, purchaseID, observation, approve)
	return nil
}

// PendingProofs lists a raffle's purchases awaiting proof review, as
// canonical reservations.
func (s *Service) PendingProofs(ctx context.Context, token, raffleID string, page int) ([]*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PendingProofs")
	defer span.End()

	items, err := s.client.PendingProofs(ctx, token, raffleID, page)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.Reservation, 0, len(items))
	for _, item := range items {
		res, err := normalize.Reservation(item, "")
		if err != nil {
			util.NormalizeFailuresTotal.Inc()
			return nil, fmt.Errorf("pending proof entry: %w", err)
		}
		pending = append(pending, res)
	}
	return pending, nil
}

func (s *Service) automaticFlow(purchaseID string) (*AutomaticFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.flows[purchaseID]
	if !ok || entry.automatic == nil {
		return nil, ErrCheckoutNotFound
	}
	return entry.automatic, nil
}

// journalSession records the reservation projection locally. Journal
// failures are logged and swallowed: the backend stays authoritative.
func (s *Service) journalSession(ctx context.Context, res *models.Reservation, manualOverride bool) {
	if s.sessions == nil {
		return
	}
	session := &models.CheckoutSession{
		PurchaseID:     res.PurchaseID,
		RaffleID:       res.RaffleID,
		PaymentType:    string(res.PaymentType),
		Status:         res.Status,
		TotalAmount:    res.TotalAmount,
		NumberCount:    res.RequestedNumberCount,
		ManualOverride: manualOverride,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		s.logger.Error("Failed to journal checkout session",
			zap.String("purchase_id", res.PurchaseID),
			zap.Error(err))
	}
}

func (s *Service) settleSession(ctx context.Context, purchaseID, status string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.UpdateSessionStatus(ctx, purchaseID, status); err != nil {
		s.logger.Warn("Failed to settle checkout session",
			zap.String("purchase_id", purchaseID),
			zap.String("status", status),
			zap.Error(err))
	}
}

func (s *Service) markManualOverride(ctx context.Context, purchaseID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.MarkManualOverride(ctx, purchaseID); err != nil {
		s.logger.Warn("Failed to mark manual override",
			zap.String("purchase_id", purchaseID),
			zap.Error(err))
	}
}

func (s *Service) publishReservationCreated(ctx context.Context, res *models.Reservation) {
	if s.events == nil {
		return
	}
	event := &models.ReservationCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeReservationCreated),
		PurchaseID:  res.PurchaseID,
		RaffleID:    res.RaffleID,
		PaymentType: string(res.PaymentType),
		NumberCount: res.RequestedNumberCount,
		TotalAmount: res.TotalAmount,
	}
	if err := s.events.PublishReservationCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCreated event", zap.Error(err))
	}
}

func (s *Service) publishFallbackActivated(ctx context.Context, fb *models.FallbackPayment) {
	if s.events == nil {
		return
	}
	event := &models.FallbackActivatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeFallbackActivated),
		PurchaseID: fb.PurchaseID,
		Reason:     fb.Reason,
	}
	if err := s.events.PublishFallbackActivated(ctx, event); err != nil {
		s.logger.Error("Failed to publish FallbackActivated event", zap.Error(err))
	}
}

func (s *Service) publishProofSubmitted(ctx context.Context, ack *models.ProofUpload) {
	if s.events == nil {
		return
	}
	event := &models.ProofSubmittedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeProofSubmitted),
		PurchaseID: ack.PurchaseID,
		ProofURL:   ack.ProofURL,
	}
	if err := s.events.PublishProofSubmitted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ProofSubmitted event", zap.Error(err))
	}
}

func (s *Service) publishPurchaseReviewed(ctx context.Context, purchaseID, observation string, approved bool) {
	if s.events == nil {
		return
	}
	eventType := models.EventTypePurchaseRejected
	if approved {
		eventType = models.EventTypePurchaseApproved
	}
	event := &models.PurchaseReviewedEvent{
		BaseEvent:   newBaseEvent(eventType),
		PurchaseID:  purchaseID,
		Approved:    approved,
		Observation: observation,
	}
	if err := s.events.PublishPurchaseReviewed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseReviewed event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
