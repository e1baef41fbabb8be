package checkout

import (
	"raffle-checkout/internal/models"
)

// Flow identifies which payment flow handles a reservation.
type Flow string

const (
	FlowFree      Flow = "FREE"
	FlowManual    Flow = "MANUAL"
	FlowAutomatic Flow = "AUTOMATIC"
	// FlowUnknown is the explicit fourth case: a payment type outside
	// the known set renders a terminal error, never a silent default.
	FlowUnknown Flow = "UNKNOWN"
)

// SelectFlow dispatches a normalized reservation to exactly one flow.
// Total over the three known payment types plus the unknown case.
// A manual override (degraded-gateway fallback) routes a nominally
// AUTOMATIC reservation to the manual flow.
func SelectFlow(res *models.Reservation, manualOverride bool) Flow {
	if manualOverride {
		return FlowManual
	}
	switch res.PaymentType {
	case models.PaymentTypeFree:
		return FlowFree
	case models.PaymentTypeManual:
		return FlowManual
	case models.PaymentTypeAutomatic:
		return FlowAutomatic
	}
	return FlowUnknown
}
