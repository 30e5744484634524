package domain

import (
	"context"
	"errors"
)

// Service is the sole authority the download gate consults.
type Service interface {
	// IsDownloadAuthorized reports whether the artifact can be released right
	// now, without touching the network. Expiry is evaluated at call time; a
	// stale verified record is cleared.
	IsDownloadAuthorized(sessionID, artifactID string) bool

	// EnsureAuthorized verifies the session's pending payment, polling the
	// gateway within the configured attempt budget. Blocks up to
	// attempts x delay; the context cancels the wait between attempts.
	EnsureAuthorized(ctx context.Context, sessionID, artifactID string) error

	// RecordHint stores a callback-reported result code for the next poll to
	// pick up. Best-effort: polling stays authoritative.
	RecordHint(checkoutRequestID, resultCode string)
}

var (
	// ErrPaymentRequired: no payment has been initiated for this artifact.
	ErrPaymentRequired = errors.New("payment_required")

	// ErrPaymentExpired: the payment window elapsed; a fresh payment is needed.
	ErrPaymentExpired = errors.New("payment_expired")

	// ErrPaymentFailed: the gateway confirmed the payment will not complete.
	ErrPaymentFailed = errors.New("payment_not_completed")

	// ErrInconclusive: the attempt budget ran out without a terminal outcome;
	// the caller may retry.
	ErrInconclusive = errors.New("verification_inconclusive")
)
