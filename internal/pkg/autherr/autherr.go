// Package autherr defines the error taxonomy shared across the service.
// Internal packages keep their own precise sentinels; handlers translate
// them into these categories so external responses never leak which check
// failed.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks malformed input the caller can correct.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication is the single collapsed category for bad
	// credentials, wrong token type, expired and revoked tokens.
	ErrAuthentication = errors.New("invalid credentials or session")
	// ErrDependencyUnavailable marks an unreachable cache or store where
	// the operation cannot proceed.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// LockedOutError reports a brute-force or account lockout along with how
// long the caller should wait before retrying.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("locked out, retry after %s", e.RetryAfter)
}

// IsLockedOut reports whether err carries a lockout, returning it if so.
func IsLockedOut(err error) (*LockedOutError, bool) {
	var le *LockedOutError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
