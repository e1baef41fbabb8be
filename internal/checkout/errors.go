package checkout

import "errors"

var (
	// ErrUnknownPaymentType marks a reservation whose payment type is
	// outside the known set. Surfaced to the user, never silently
	// defaulted.
	ErrUnknownPaymentType = errors.New("unknown payment type")

	// ErrInstructionsMissing marks a MANUAL reservation that arrived
	// without payee instructions: a configuration error upstream, shown
	// as a terminal state instead of crashing the view.
	ErrInstructionsMissing = errors.New("manual payment instructions missing")

	// ErrAlreadySubmitted guards the one-proof-per-reservation rule.
	ErrAlreadySubmitted = errors.New("proof already submitted")

	// ErrReservationExpired marks actions attempted after the local
	// countdown ran out.
	ErrReservationExpired = errors.New("reservation expired")

	// ErrNotImage rejects proof files without an image MIME type.
	ErrNotImage = errors.New("proof must be an image")

	// ErrProofTooLarge rejects proof files above the size limit.
	ErrProofTooLarge = errors.New("proof exceeds maximum size")

	// ErrObservationTooShort rejects review observations that are empty
	// or shorter than the required minimum after trimming.
	ErrObservationTooShort = errors.New("observation too short")

	// ErrFlowClosed marks operations on a flow whose view was closed;
	// late results are discarded rather than applied.
	ErrFlowClosed = errors.New("checkout flow closed")

	// ErrCheckoutNotFound marks operations on a purchase with no active
	// flow in this instance.
	ErrCheckoutNotFound = errors.New("checkout not found")
)
