package worker

import (
	"context"
	"errors"
	"log"

	"raffle-checkout/internal/broker"
	"raffle-checkout/internal/models"
	"raffle-checkout/internal/store"
)

// ReconciliationWorker consumes payment gateway relay events and settles
// the local checkout session journal. Processing is idempotent: each
// event id is recorded and replays are skipped, and the session status
// transition guard rejects late events that would resurrect a terminal
// session.
type ReconciliationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sessions     *store.Store
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(consumer *broker.Consumer, sessions *store.Store) *ReconciliationWorker {
	w := &ReconciliationWorker{
		consumer: consumer,
		sessions: sessions,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentApproved(w.handlePaymentApproved)
	eventHandler.OnPaymentExpired(w.handlePaymentExpired)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	log.Println("Starting reconciliation worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconciliationWorker) Stop() error {
	log.Println("Stopping reconciliation worker...")
	return w.consumer.Close()
}

func (w *ReconciliationWorker) handlePaymentApproved(ctx context.Context, event *models.PaymentApprovedEvent) error {
	return w.settle(ctx, event.BaseEvent, event.PurchaseID, models.StatusPaid)
}

func (w *ReconciliationWorker) handlePaymentExpired(ctx context.Context, event *models.PaymentExpiredEvent) error {
	return w.settle(ctx, event.BaseEvent, event.PurchaseID, models.StatusExpired)
}

func (w *ReconciliationWorker) settle(ctx context.Context, base models.BaseEvent, purchaseID, status string) error {
	processed, err := w.sessions.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if processed {
		log.Printf("Skipping already processed event: %s", base.EventID)
		return nil
	}

	if err := w.sessions.UpdateSessionStatus(ctx, purchaseID, status); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Late event against a terminal session: drop it, don't retry.
			log.Printf("Dropping late event %s for session %s: %v", base.EventID, purchaseID, err)
			return w.sessions.MarkEventProcessed(ctx, base.EventID, base.EventType)
		}
		log.Printf("Failed to settle session %s to %s: %v", purchaseID, status, err)
		return err
	}

	return w.sessions.MarkEventProcessed(ctx, base.EventID, base.EventType)
}
