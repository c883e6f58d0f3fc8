// Package payment applies verified gateway completion events to cases and
// builds checkout sessions gated on case existence.
package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/store"
	"caseflow/internal/events"
	"caseflow/internal/payment/dedup"
	"caseflow/internal/platform/metrics"
	dErrors "caseflow/pkg/domainerrors"
	"caseflow/pkg/platform/sentinel"
)

// CaseReader is the retry-tolerant lookup from the case facade. Checkout
// uses it so a just-created case inside the visibility window can still
// start a payment.
type CaseReader interface {
	GetCase(ctx context.Context, token string) (models.Case, error)
}

type Service struct {
	cases   store.CaseStore
	reader  CaseReader
	gateway Gateway
	dedup   dedup.Registry
	log     *events.Log
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cases store.CaseStore, reader CaseReader, gateway Gateway, registry dedup.Registry, log *events.Log, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		cases:   cases,
		reader:  reader,
		gateway: gateway,
		dedup:   registry,
		log:     log,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// HandleWebhook verifies and applies one gateway delivery. Completion events
// flip the case to paid/unlocked exactly once; redelivered events and other
// event classes are acknowledged without touching state. The error contract
// matches the gateway convention: signature, parse, and correlation problems
// are client errors; an unknown case is a hard server error so the delivery
// is retried and an operator sees it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "missing webhook signature")
	}

	event, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		s.logger.WarnContext(ctx, "webhook verification failed", "error", err)
		return dErrors.New(dErrors.CodeInvalidInput, "invalid webhook payload or signature")
	}

	if !event.Completed {
		return nil
	}

	token := models.NormalizeToken(event.Token)
	if token == "" {
		s.logger.WarnContext(ctx, "completion event without correlation token", "event_id", event.ID)
		return dErrors.New(dErrors.CodeInvalidInput, "no case token in event")
	}

	first, err := s.dedup.MarkProcessed(ctx, event.ID)
	if err != nil {
		// The registry is advisory; the event-log append below is keyed by
		// event id, so processing anyway cannot double-append.
		s.logger.WarnContext(ctx, "event dedup registry unavailable", "event_id", event.ID, "error", err)
	} else if !first {
		s.logger.InfoContext(ctx, "ignoring redelivered payment event", "event_id", event.ID, "token", token)
		return nil
	}

	now := s.now().UTC()
	err = s.cases.MarkPaid(ctx, token, store.PaymentReceipt{
		CheckoutSessionID: event.SessionID,
		PaymentIntentID:   event.PaymentIntentID,
		AmountTotal:       event.AmountTotal,
		Currency:          event.Currency,
	}, now)
	if err != nil {
		// The slot was claimed but nothing was applied. Release it so the
		// gateway's retry reaches the store again instead of being
		// short-circuited as a redelivery; the event-log append stays
		// idempotent either way.
		s.release(ctx, event.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			// A completed payment with no matching case must never vanish
			// silently.
			s.logger.ErrorContext(ctx, "payment completed for unknown case",
				"event_id", event.ID,
				"token", token,
				"session_id", event.SessionID,
			)
			return dErrors.New(dErrors.CodeInternal, "no case for completed payment")
		}
		s.logger.ErrorContext(ctx, "failed to apply payment", "token", token, "error", err)
		return dErrors.New(dErrors.CodeInternal, "failed to apply payment")
	}

	s.metrics.PaymentsCompleted.Inc()
	s.log.Record(ctx, events.Event{
		ID:    event.ID, // gateway id: redelivery cannot append twice
		Token: token,
		Type:  events.TypePaymentCompleted,
		Data: map[string]any{
			"session_id":        event.SessionID,
			"payment_intent_id": event.PaymentIntentID,
			"amount_total":      event.AmountTotal,
			"currency":          event.Currency,
			"customer_email":    event.CustomerEmail,
		},
	})
	return nil
}

// release gives a claimed dedup slot back. Best-effort: when it fails the
// entry expires with its TTL and a stuck payment shows up in the error logs
// for an operator.
func (s *Service) release(ctx context.Context, eventID string) {
	if err := s.dedup.Forget(ctx, eventID); err != nil {
		s.logger.WarnContext(ctx, "failed to release event dedup slot", "event_id", eventID, "error", err)
	}
}

// CreateCheckout validates inputs, requires the case to exist, records the
// contact address, and opens a gateway session. Returns the hosted checkout
// URL.
func (s *Service) CreateCheckout(ctx context.Context, token, email string) (string, error) {
	token = models.NormalizeToken(token)
	if token == "" || email == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token and email are required")
	}
	if !govalidator.IsEmail(email) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid email format")
	}

	if _, err := s.reader.GetCase(ctx, token); err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "case not found; start a new case first")
		}
		return "", err
	}

	if err := s.cases.SetCheckout(ctx, token, email, s.now().UTC()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "case not found; start a new case first")
		}
		s.logger.ErrorContext(ctx, "failed to update case for checkout", "token", token, "error", err)
		return "", dErrors.New(dErrors.CodeInternal, "failed to update case")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, token, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway session creation failed", "token", token, "error", err)
		return "", dErrors.New(dErrors.CodeUpstream, "failed to create checkout session")
	}

	s.metrics.CheckoutSessions.Inc()
	s.log.Record(ctx, events.Event{
		Token: token,
		Type:  events.TypeCheckoutSessionCreated,
		Data: map[string]any{
			"session_id": session.ID,
			"email":      email,
			"amount":     session.AmountTotal,
			"currency":   session.Currency,
		},
	})
	return session.URL, nil
}
