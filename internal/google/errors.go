package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrAuthExpired reports that the remote API rejected the credential.
// Callers surface it distinctly so the UI can offer re-authorization
// instead of a generic retry.
var ErrAuthExpired = errors.New("calendar authorization expired")

// TransientError wraps any calendar failure that is not an authorization
// failure: network errors, 5xx responses, timeouts. Safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient calendar error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// classify maps a remote call failure onto the two-way taxonomy. The engine
// never retries internally; it classifies so the caller can decide between
// prompting re-authorization and showing a generic sync error.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return &TransientError{Err: err}
}
