package models

import (
	"fmt"
	"time"
)

// PaymentType classifies how a raffle collects money.
type PaymentType string

const (
	PaymentTypeFree      PaymentType = "FREE"
	PaymentTypeManual    PaymentType = "MANUAL"
	PaymentTypeAutomatic PaymentType = "AUTOMATIC"
)

// Reservation statuses. PAID, EXPIRED and CANCELED are terminal.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusPaid      = "PAID"
	StatusExpired   = "EXPIRED"
	StatusCanceled  = "CANCELED"
)

// PIX payment statuses, as reported by the payment gateway.
const (
	PixAwaiting = "AWAITING"
	PixApproved = "APPROVED"
	PixRefused  = "REFUSED"
	PixExpired  = "EXPIRED"
)

// Reservation is the canonical projection of a purchase. It is always a
// point-in-time view of server state, never authoritative.
type Reservation struct {
	PurchaseID           string              `json:"purchase_id"`
	RaffleID             string              `json:"raffle_id"`
	RaffleTitle          string              `json:"raffle_title"`
	PaymentType          PaymentType         `json:"payment_type"`
	TypeInferred         bool                `json:"type_inferred,omitempty"`
	RequestedNumberCount int                 `json:"requested_number_count"`
	AssignedNumbers      []int               `json:"assigned_numbers"`
	TotalAmount          float64             `json:"total_amount"`
	Status               string              `json:"status"`
	ExpiresAt            *time.Time          `json:"expires_at,omitempty"`
	MinutesRemaining     int                 `json:"minutes_remaining,omitempty"`
	ManualInstructions   *ManualInstructions `json:"manual_instructions,omitempty"`
	AutomaticPayment     *AutomaticPayment   `json:"automatic_payment,omitempty"`
}

// ManualInstructions carries the seller's bank-transfer details for
// MANUAL reservations.
type ManualInstructions struct {
	PayeeKey   string  `json:"payee_key"`
	PayeeName  string  `json:"payee_name"`
	PayeeEmail string  `json:"payee_email"`
	Amount     float64 `json:"amount"`
	Message    string  `json:"message,omitempty"`
}

// AutomaticPayment carries the gateway-issued PIX charge for
// AUTOMATIC reservations.
type AutomaticPayment struct {
	PaymentID     string     `json:"payment_id"`
	QRImageData   string     `json:"qr_image_data,omitempty"`
	QRPayloadText string     `json:"qr_payload_text,omitempty"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// FallbackPayment is the degraded-mode record returned when the payment
// gateway could not be reached at reservation time but the backend still
// handed back usable manual-payment instructions. Keyed by purchase id,
// consumed at most once.
type FallbackPayment struct {
	PurchaseID string  `json:"purchase_id"`
	Reason     string  `json:"reason"`
	Message    string  `json:"message,omitempty"`
	PayeeKey   string  `json:"payee_key"`
	PayeeName  string  `json:"payee_name"`
	Amount     float64 `json:"amount"`
	UploadURL  string  `json:"upload_url,omitempty"`
}

// Instructions converts a fallback record into manual-payment
// instructions so the manual flow can render it.
func (f *FallbackPayment) Instructions() *ManualInstructions {
	return &ManualInstructions{
		PayeeKey:  f.PayeeKey,
		PayeeName: f.PayeeName,
		Amount:    f.Amount,
		Message:   f.Message,
	}
}

// ProofUpload is the backend's acknowledgment of a proof-of-payment upload.
type ProofUpload struct {
	PurchaseID string    `json:"purchase_id"`
	ProofURL   string    `json:"proof_url"`
	UploadedAt time.Time `json:"uploaded_at"`
	Message    string    `json:"message,omitempty"`
}

// Raffle is the normalized listing/detail projection of a raffle.
type Raffle struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Type           PaymentType `json:"type"`
	ImageURL       string      `json:"image_url,omitempty"`
	PricePerNumber float64     `json:"price_per_number"`
	TotalNumbers   int         `json:"total_numbers"`
	SoldNumbers    int         `json:"sold_numbers"`
	Status         string      `json:"status"`
}

// CheckoutSession is the locally journaled projection of a reservation,
// used for reconciliation and reporting. The row mirrors server state;
// the transition guard keeps it from ever leaving a terminal status.
type CheckoutSession struct {
	PurchaseID     string    `db:"purchase_id" json:"purchase_id"`
	RaffleID       string    `db:"raffle_id" json:"raffle_id"`
	PaymentType    string    `db:"payment_type" json:"payment_type"`
	Status         string    `db:"status" json:"status"`
	TotalAmount    float64   `db:"total_amount" json:"total_amount"`
	NumberCount    int       `db:"number_count" json:"number_count"`
	ManualOverride bool      `db:"manual_override" json:"manual_override"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProcessedEvent for consumer idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// TerminalStatus reports whether a reservation status absorbs all
// further transitions.
func TerminalStatus(status string) bool {
	switch status {
	case StatusPaid, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

// CanTransition reports whether a reservation may move from one status
// to another. Transitions are monotonic: PENDING -> {CONFIRMED|PAID} |
// EXPIRED | CANCELED, CONFIRMED -> PAID | EXPIRED | CANCELED, and no
// transition leaves a terminal state. A no-op transition is allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	if TerminalStatus(from) {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusPaid || to == StatusExpired || to == StatusCanceled
	case StatusConfirmed:
		return to == StatusPaid || to == StatusExpired || to == StatusCanceled
	}
	return false
}

// FormatTicketNumber renders an assigned number the way tickets are
// printed: zero-padded to four digits (7 -> "0007").
func FormatTicketNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

// FormatTicketNumbers renders all assigned numbers in order.
func FormatTicketNumbers(nums []int) []string {
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = FormatTicketNumber(n)
	}
	return out
}
