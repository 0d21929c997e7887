package detect

import (
	"errors"
	"fmt"
)

var (
	// ErrInProgress is returned when a single-site detection for the same
	// name is already outstanding.
	ErrInProgress = errors.New("detect: detection already in progress")
	// ErrCancelled marks a probe aborted by the user or by shutdown.
	ErrCancelled = errors.New("detect: operation cancelled")
	// ErrInvalidBatch is a batch-setup error.
	ErrInvalidBatch = errors.New("detect: invalid batch")
)

// AuthError is returned by single-site detection when the failure looks
// like an expired login.
type AuthError struct {
	Site string
	URL  string
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("site %s needs a new login: %s", e.Site, e.Msg)
}
