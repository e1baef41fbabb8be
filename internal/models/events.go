package models

import "time"

// Event types
const (
	EventTypeReservationCreated = "RESERVATION_CREATED"
	EventTypeProofSubmitted     = "PROOF_SUBMITTED"
	EventTypePurchaseApproved   = "PURCHASE_APPROVED"
	EventTypePurchaseRejected   = "PURCHASE_REJECTED"
	EventTypePaymentApproved    = "PAYMENT_APPROVED"
	EventTypePaymentExpired     = "PAYMENT_EXPIRED"
	EventTypeFallbackActivated  = "FALLBACK_ACTIVATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationCreatedEvent published when numbers are reserved
type ReservationCreatedEvent struct {
	BaseEvent
	PurchaseID  string  `json:"purchase_id"`
	RaffleID    string  `json:"raffle_id"`
	PaymentType string  `json:"payment_type"`
	NumberCount int     `json:"number_count"`
	TotalAmount float64 `json:"total_amount"`
}

// ProofSubmittedEvent published when a proof-of-payment upload succeeds
type ProofSubmittedEvent struct {
	BaseEvent
	PurchaseID string `json:"purchase_id"`
	ProofURL   string `json:"proof_url"`
}

// PurchaseReviewedEvent published when a seller approves or rejects a purchase
type PurchaseReviewedEvent struct {
	BaseEvent
	PurchaseID  string `json:"purchase_id"`
	Approved    bool   `json:"approved"`
	Observation string `json:"observation"`
}

// PaymentApprovedEvent consumed from the payment gateway relay
type PaymentApprovedEvent struct {
	BaseEvent
	PurchaseID string `json:"purchase_id"`
	PaymentID  string `json:"payment_id"`
}

// PaymentExpiredEvent consumed from the payment gateway relay
type PaymentExpiredEvent struct {
	BaseEvent
	PurchaseID string `json:"purchase_id"`
	PaymentID  string `json:"payment_id"`
}

// FallbackActivatedEvent published when a PIX generation call degraded
// into manual-payment instructions
type FallbackActivatedEvent struct {
	BaseEvent
	PurchaseID string `json:"purchase_id"`
	Reason     string `json:"reason"`
}
