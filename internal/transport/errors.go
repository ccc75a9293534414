package transport

import "errors"

// Distinct delivery failure reasons. Adapters map platform errors onto
// these so callers can decide between retry and immediate report.
var (
	ErrPermissionDenied = errors.New("transport: permission denied")
	ErrNotFound         = errors.New("transport: chat or file not found")
	ErrTooLarge         = errors.New("transport: payload too large")
	ErrRateLimited      = errors.New("transport: rate limited")
	ErrTransient        = errors.New("transport: transient failure")
)

// Retriable reports whether the error is worth another attempt.
// Permission, not-found and size errors never are.
func Retriable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
