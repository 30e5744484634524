package domain

import (
	"context"
	"time"
)

const (
	// TransactionType for till-number push payments.
	TransactionType = "CustomerBuyGoodsOnline"

	// MaxReferenceLen is the gateway's cap on account references.
	MaxReferenceLen = 12
)

// Service is the gateway client contract.
type Service interface {
	// SanitizePhone normalizes a raw phone number to the 254XXXXXXXXX wire
	// format. Callers must sanitize before encrypting or sending anything.
	SanitizePhone(raw string) (string, error)

	// InitiatePush sends a push payment prompt to the payer's device and
	// returns the gateway's immediate acknowledgment.
	InitiatePush(ctx context.Context, req PushRequest) (*PushResult, error)

	// QueryStatus asks the gateway for the outcome of a pending push.
	QueryStatus(ctx context.Context, checkoutRequestID string) (Outcome, error)
}

// StatusQuerier is the slice of Service the verification loop depends on.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (Outcome, error)
}

// PushRequest describes a payment prompt to send.
type PushRequest struct {
	Phone            string
	Amount           int64
	Description      string
	AccountReference string
}

// PushResult is the gateway's synchronous acknowledgment of a push request.
// The payer's number only travels on in encrypted form.
type PushResult struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseDescription string
	EncryptedPhone      string
	PhoneHash           string
	AccountReference    string
}

// TokenCache is the cached bearer token with its computed expiry.
type TokenCache struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the cached token can still be used at now.
func (t TokenCache) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// OutcomeState classifies a status query result.
type OutcomeState string

const (
	OutcomeSuccess   OutcomeState = "success"
	OutcomePending   OutcomeState = "pending"
	OutcomeCancelled OutcomeState = "cancelled"
	OutcomeTimeout   OutcomeState = "timeout"
	OutcomeUnknown   OutcomeState = "unknown"
)

// Outcome is the discriminated result of a status query.
type Outcome struct {
	State       OutcomeState
	Code        string
	Description string
}

// Terminal reports whether re-querying can change the outcome.
func (o Outcome) Terminal() bool {
	switch o.State {
	case OutcomeSuccess, OutcomeCancelled, OutcomeTimeout:
		return true
	default:
		return false
	}
}
