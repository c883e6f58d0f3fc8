// Package store persists case records. All coordination between concurrent
// requests happens here: callers never read-modify-write payloads, they hand
// fragments to the store and the store merges atomically.
package store

import (
	"context"
	"time"

	"caseflow/internal/cases/models"
)

// PaymentReceipt carries the gateway identifiers recorded on a paid case.
type PaymentReceipt struct {
	CheckoutSessionID string
	PaymentIntentID   string
	AmountTotal       int64
	Currency          string
}

// CaseStore is implemented by the in-memory store and postgres.
//
// Upsert is the single-statement create-or-merge path: it must be atomic with
// respect to concurrent upserts for the same token, so a lookup-then-write
// race cannot lose fields or produce duplicate rows. The returned bool
// reports whether the row was created.
type CaseStore interface {
	Upsert(ctx context.Context, token string, fragment map[string]any, now time.Time) (models.Case, bool, error)
	Find(ctx context.Context, token string) (models.Case, error)

	// MergePayload shallow-merges fragment over the stored payload.
	// Returns sentinel.ErrNotFound when no case matches.
	MergePayload(ctx context.Context, token string, fragment map[string]any, now time.Time) (models.Case, error)

	// SetCheckout records the contact address and moves the case to
	// pending_payment ahead of a gateway session.
	SetCheckout(ctx context.Context, token, email string, now time.Time) error

	// MarkPaid flips the case to paid/unlocked and records the receipt.
	// Returns sentinel.ErrNotFound when no case matches; a payment must never
	// be orphaned silently.
	MarkPaid(ctx context.Context, token string, receipt PaymentReceipt, now time.Time) error
}
