// Package models holds the case record and its payload vocabulary. The
// payload is schemaless by design; the constants below are the bookkeeping
// keys the service itself reads and writes.
package models

import (
	"strings"
	"time"

	dErrors "caseflow/pkg/domainerrors"
)

// Status is the coarse case lifecycle. Transitions are monotonic in practice
// (new → pending_payment → paid) but the store does not guard them.
type Status string

const (
	StatusNew            Status = "new"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
)

// Case is the central record, one per token.
type Case struct {
	ID       string
	Token    string
	Status   Status
	Unlocked bool
	Email    string

	// Payload is an open key→value bag: user-submitted fields plus the
	// extraction bookkeeping keys. Merges are shallow, last write wins per key.
	Payload map[string]any

	// Gateway identifiers recorded by the payment event processor. These are
	// first-class columns, not payload keys.
	CheckoutSessionID string
	PaymentIntentID   string
	AmountTotal       int64
	Currency          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPrefix is the required prefix of every case token. Tokens are minted
// by the client; the service only validates them.
const TokenPrefix = "case_"

// NormalizeToken trims surrounding whitespace. Comparison stays
// case-sensitive after trimming.
func NormalizeToken(token string) string {
	return strings.TrimSpace(token)
}

// ValidateToken checks the prefix scheme on a normalized token.
func ValidateToken(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) || len(token) == len(TokenPrefix) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid token format")
	}
	return nil
}

// MergePayload returns a new map with fragment shallow-merged over base.
// Neither input is mutated.
func MergePayload(base, fragment map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(fragment))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range fragment {
		merged[k] = v
	}
	return merged
}

// PayloadKeys returns the sorted-insensitive key names of a fragment, used
// for audit events so payload contents never land in the event log.
func PayloadKeys(fragment map[string]any) []string {
	keys := make([]string, 0, len(fragment))
	for k := range fragment {
		keys = append(keys, k)
	}
	return keys
}

// MaskEmail hides the local part beyond its first two characters while
// keeping the domain readable. Short local parts pass through unmasked, and
// anything that does not look like an address is returned empty.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return local + "@" + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + "@" + domain
}
