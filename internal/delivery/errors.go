package delivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

// Response bodies. They never carry the underlying cause.
const (
	msgNotFound    = "Link expired or invalid"
	msgBadRange    = "Malformed Range header"
	msgServerError = "Internal server error"
)

// StatusFor maps a delivery error to the status and body sent to the client.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedRange):
		return http.StatusBadRequest, msgBadRange
	case errors.Is(err, domain.ErrNoSessionsAvailable):
		return http.StatusInternalServerError, msgServerError
	default:
		return http.StatusNotFound, msgNotFound
	}
}

// redirectStatusFor is the redirect endpoint's two-way table: link problems
// are "not found", everything else is a server error.
func redirectStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidLink),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgServerError
	}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "aborted"
	case errors.Is(err, domain.ErrInvalidLink):
		return "invalid_link"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrObjectNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrMalformedRange):
		return "bad_range"
	case errors.Is(err, domain.ErrNoSessionsAvailable):
		return "no_sessions"
	case errors.Is(err, domain.ErrBackendUnreachable):
		return "backend_unreachable"
	default:
		return "error"
	}
}

// expected reports whether err is an ordinary client-caused failure that
// does not deserve an error-level log line.
func expected(err error) bool {
	return errors.Is(err, domain.ErrInvalidLink) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrObjectNotFound) ||
		errors.Is(err, domain.ErrMalformedRange) ||
		errors.Is(err, context.Canceled)
}
