package checkout

import (
	"raffle-checkout/internal/models"
)

// FreeFlow is the trivial confirmation display for free raffles: the
// numbers are assigned immediately and there is nothing to pay.
type FreeFlow struct {
	reservation *models.Reservation
}

// NewFreeFlow builds the flow for a FREE reservation.
func NewFreeFlow(res *models.Reservation) *FreeFlow {
	return &FreeFlow{reservation: res}
}

// Confirmation returns the confirmed ticket labels, zero-padded.
func (f *FreeFlow) Confirmation() []string {
	return models.FormatTicketNumbers(f.reservation.AssignedNumbers)
}

// Reservation returns the underlying reservation snapshot.
func (f *FreeFlow) Reservation() *models.Reservation {
	return f.reservation
}
