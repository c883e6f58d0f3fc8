// Package service implements the case repository facade: idempotent
// create-or-merge saves and retry-tolerant lookups. It owns no state of its
// own; all coordination is mediated through the store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/store"
	"caseflow/internal/events"
	"caseflow/internal/platform/metrics"
	dErrors "caseflow/pkg/domainerrors"
	"caseflow/pkg/platform/sentinel"
)

// Dispatcher receives the just-written case after a successful save. Handing
// the record over directly (instead of letting the dispatcher re-read it)
// gives the dispatch path read-your-writes without timing heuristics.
type Dispatcher interface {
	DispatchSaved(c models.Case)
}

// LookupPolicy bounds the retry applied when a lookup races a write from
// another request still inside the store's visibility window. Both fields
// are hard caps; a lookup always terminates with a definite answer.
type LookupPolicy struct {
	Retries uint64
	Delay   time.Duration
}

func DefaultLookupPolicy() LookupPolicy {
	return LookupPolicy{Retries: 3, Delay: time.Second}
}

type Service struct {
	cases      store.CaseStore
	log        *events.Log
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	lookup     LookupPolicy
	now        func() time.Time
}

func New(cases store.CaseStore, log *events.Log, dispatcher Dispatcher, logger *slog.Logger, m *metrics.Metrics, lookup LookupPolicy) *Service {
	if lookup.Delay <= 0 {
		lookup = DefaultLookupPolicy()
	}
	return &Service{
		cases:      cases,
		log:        log,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		lookup:     lookup,
		now:        time.Now,
	}
}

// SaveCase validates the token, then creates or merges in a single atomic
// store call. The fragment is shallow-merged over any stored payload; two
// concurrent saves with disjoint keys both survive because the merge runs
// inside the store, not here.
func (s *Service) SaveCase(ctx context.Context, token string, fragment map[string]any) (models.Case, error) {
	token = models.NormalizeToken(token)
	if err := models.ValidateToken(token); err != nil {
		return models.Case{}, err
	}
	if fragment == nil {
		return models.Case{}, dErrors.New(dErrors.CodeInvalidInput, "payload is required")
	}

	now := s.now().UTC()
	saved, created, err := s.cases.Upsert(ctx, token, fragment, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "case upsert failed", "token", token, "error", err)
		return models.Case{}, dErrors.New(dErrors.CodeInternal, "failed to save case")
	}

	s.verifyVisible(ctx, token)

	eventType := events.TypeCaseUpdated
	if created {
		eventType = events.TypeCaseCreated
		s.metrics.CasesCreated.Inc()
	} else {
		s.metrics.CasesUpdated.Inc()
	}
	s.log.Record(ctx, events.Event{
		Token: token,
		Type:  eventType,
		Data:  map[string]any{"payload_keys": models.PayloadKeys(fragment)},
	})

	// Fire-and-forget: the dispatcher gets the saved record and a detached
	// lifetime, so its outcome can never alter this save's response.
	if s.dispatcher != nil {
		go s.dispatcher.DispatchSaved(saved)
	}

	return saved, nil
}

// verifyVisible is a best-effort read-back after a write. A miss is reported
// as a durability-verification failure but the write result remains the
// source of truth.
func (s *Service) verifyVisible(ctx context.Context, token string) {
	if _, err := s.cases.Find(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "durability verification failed: write not yet visible",
			"token", token,
			"error", err,
		)
	}
}

// GetCase looks up a case by normalized token. NotFound inside the store's
// visibility window is retried on a fixed delay up to the policy cap before
// it is reported; any other store error fails immediately.
func (s *Service) GetCase(ctx context.Context, token string) (models.Case, error) {
	token = models.NormalizeToken(token)
	if err := models.ValidateToken(token); err != nil {
		return models.Case{}, err
	}

	var found models.Case
	lookup := func() error {
		c, err := s.cases.Find(ctx, token)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return err // retryable: the write may not be visible yet
			}
			return backoff.Permanent(err)
		}
		found = c
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.lookup.Delay), s.lookup.Retries),
		ctx,
	)
	if err := backoff.Retry(lookup, policy); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		s.logger.ErrorContext(ctx, "case lookup failed", "token", token, "error", err)
		return models.Case{}, dErrors.New(dErrors.CodeInternal, "failed to read case")
	}
	return found, nil
}
