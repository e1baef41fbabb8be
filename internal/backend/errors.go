package backend

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable marks responses that cannot be treated as a
// backend answer at all: transport failures and success responses whose
// content type is not application/json. Callers must never parse such
// a response as success.
var ErrServiceUnavailable = errors.New("raffle backend unavailable")

// ErrOffline is returned by operations that have no canned offline
// behavior when the client was constructed in offline mode.
var ErrOffline = errors.New("backend client is offline")

// APIError is a non-2xx backend answer carrying a user-facing message
// extracted from the response body, falling back to the status phrase.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
