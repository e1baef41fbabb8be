package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"raffle-checkout/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing checkout lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishReservationCreated publishes ReservationCreated event
func (ep *EventPublisher) PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, purchaseKey(event.PurchaseID), event)
}

// PublishProofSubmitted publishes ProofSubmitted event
func (ep *EventPublisher) PublishProofSubmitted(ctx context.Context, event *models.ProofSubmittedEvent) error {
	return ep.producer.PublishEvent(ctx, purchaseKey(event.PurchaseID), event)
}

// PublishPurchaseReviewed publishes PurchaseReviewed event
func (ep *EventPublisher) PublishPurchaseReviewed(ctx context.Context, event *models.PurchaseReviewedEvent) error {
	return ep.producer.PublishEvent(ctx, purchaseKey(event.PurchaseID), event)
}

// PublishFallbackActivated publishes FallbackActivated event
func (ep *EventPublisher) PublishFallbackActivated(ctx context.Context, event *models.FallbackActivatedEvent) error {
	return ep.producer.PublishEvent(ctx, purchaseKey(event.PurchaseID), event)
}

func purchaseKey(purchaseID string) string {
	return fmt.Sprintf("purchase-%s", purchaseID)
}

// EventHandler routes gateway relay events to registered handlers
type EventHandler struct {
	onPaymentApproved func(context.Context, *models.PaymentApprovedEvent) error
	onPaymentExpired  func(context.Context, *models.PaymentExpiredEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentApproved registers a handler for PaymentApproved events
func (eh *EventHandler) OnPaymentApproved(handler func(context.Context, *models.PaymentApprovedEvent) error) {
	eh.onPaymentApproved = handler
}

// OnPaymentExpired registers a handler for PaymentExpired events
func (eh *EventHandler) OnPaymentExpired(handler func(context.Context, *models.PaymentExpiredEvent) error) {
	eh.onPaymentExpired = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePaymentApproved:
		if eh.onPaymentApproved != nil {
			var event models.PaymentApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentApproved event: %w", err)
			}
			return eh.onPaymentApproved(ctx, &event)
		}

	case models.EventTypePaymentExpired:
		if eh.onPaymentExpired != nil {
			var event models.PaymentExpiredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentExpired event: %w", err)
			}
			return eh.onPaymentExpired(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
