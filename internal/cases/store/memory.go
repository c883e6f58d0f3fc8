package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/cases/models"
	"caseflow/pkg/platform/sentinel"
)

// InMemory mirrors the postgres semantics under a single mutex: merges are
// atomic per call, so two concurrent saves with disjoint keys both survive.
type InMemory struct {
	mu    sync.RWMutex
	byTok map[string]*models.Case
}

func NewInMemory() *InMemory {
	return &InMemory{byTok: make(map[string]*models.Case)}
}

func (s *InMemory) Upsert(_ context.Context, token string, fragment map[string]any, now time.Time) (models.Case, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTok[token]; ok {
		existing.Payload = models.MergePayload(existing.Payload, fragment)
		existing.UpdatedAt = now
		return clone(existing), false, nil
	}

	created := &models.Case{
		ID:        uuid.NewString(),
		Token:     token,
		Status:    models.StatusNew,
		Unlocked:  false,
		Payload:   models.MergePayload(nil, fragment),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byTok[token] = created
	return clone(created), true, nil
}

func (s *InMemory) Find(_ context.Context, token string) (models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byTok[token]
	if !ok {
		return models.Case{}, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemory) MergePayload(_ context.Context, token string, fragment map[string]any, now time.Time) (models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byTok[token]
	if !ok {
		return models.Case{}, sentinel.ErrNotFound
	}
	c.Payload = models.MergePayload(c.Payload, fragment)
	c.UpdatedAt = now
	return clone(c), nil
}

func (s *InMemory) SetCheckout(_ context.Context, token, email string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byTok[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Email = email
	c.Status = models.StatusPendingPayment
	c.UpdatedAt = now
	return nil
}

func (s *InMemory) MarkPaid(_ context.Context, token string, receipt PaymentReceipt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byTok[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Status = models.StatusPaid
	c.Unlocked = true
	c.CheckoutSessionID = receipt.CheckoutSessionID
	c.PaymentIntentID = receipt.PaymentIntentID
	c.AmountTotal = receipt.AmountTotal
	c.Currency = receipt.Currency
	c.UpdatedAt = now
	return nil
}

// clone copies the record and its payload so callers can never alias the
// store's map.
func clone(c *models.Case) models.Case {
	out := *c
	out.Payload = models.MergePayload(c.Payload, nil)
	return out
}
