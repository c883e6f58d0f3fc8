// Package extract dispatches saved cases to the extraction worker and
// records the outcome into the case payload. Dispatch is fire-and-forget
// from the saving request's point of view: at most one attempt per trigger,
// failures recorded for operator diagnosis, never auto-retried and never
// surfaced to the caller that triggered the save.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/store"
	"caseflow/internal/platform/metrics"
	"caseflow/pkg/platform/sentinel"
)

// Outcome reports where a dispatch attempt ended up.
type Outcome struct {
	Status       models.ExtractStatus
	WorkerStatus int
	Detail       string
}

// ErrNoCase is returned when the dispatch target does not exist.
var ErrNoCase = errors.New("case not found for dispatch")

type Dispatcher struct {
	cases   store.CaseStore
	worker  Worker // nil when the worker URL or secret is not configured
	logger  *slog.Logger
	metrics *metrics.Metrics
	budget  time.Duration
	now     func() time.Time
}

func NewDispatcher(cases store.CaseStore, worker Worker, logger *slog.Logger, m *metrics.Metrics, budget time.Duration) *Dispatcher {
	if budget <= 0 {
		budget = 45 * time.Second
	}
	return &Dispatcher{
		cases:   cases,
		worker:  worker,
		logger:  logger,
		metrics: m,
		budget:  budget,
		now:     time.Now,
	}
}

// DispatchSaved runs need detection on a just-saved case and dispatches when
// warranted. It runs detached from the request that saved the case: its own
// context, its own deadline, and no way to fail the save.
func (d *Dispatcher) DispatchSaved(c models.Case) {
	if !NeedsExtraction(c.Payload) {
		return
	}
	desc, ok := DeriveDescriptor(c.Token, c.Payload)
	if !ok {
		// Material was present but no storage path is derivable. Nothing to
		// do; deliberately not recorded as a failure.
		d.logger.Info("extraction skipped: no storage path derivable", "token", c.Token)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.budget)
	defer cancel()
	if _, err := d.Dispatch(ctx, c.Token, desc); err != nil {
		d.logger.Warn("extraction dispatch failed", "token", c.Token, "error", err)
	}
}

// Dispatch marks the case triggered, calls the worker once, and records the
// terminal outcome into the payload. The triggered marker is written before
// the outbound call so a crash mid-dispatch leaves an inspectable state
// instead of silently reverting to pending.
func (d *Dispatcher) Dispatch(ctx context.Context, token string, desc Descriptor) (Outcome, error) {
	now := d.now().UTC()

	if d.worker == nil {
		outcome := Outcome{Status: models.ExtractNotConfigured, Detail: "extraction worker not configured"}
		d.record(ctx, token, map[string]any{
			models.KeyExtractStatus:   string(models.ExtractNotConfigured),
			models.KeyExtractError:    outcome.Detail,
			models.KeyExtractFailedAt: now.Format(time.RFC3339),
		})
		d.metrics.ExtractDispatches.WithLabelValues(string(outcome.Status)).Inc()
		return outcome, nil
	}

	_, err := d.cases.MergePayload(ctx, token, map[string]any{
		models.KeyExtractStatus:      string(models.ExtractTriggered),
		models.KeyNoticeStoragePath:  desc.StoragePath,
		models.KeyNoticeFilename:     desc.Filename,
		models.KeyNoticeMimeType:     desc.MimeType,
		models.KeyExtractTriggeredAt: now.Format(time.RFC3339),
	}, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Outcome{}, ErrNoCase
		}
		return Outcome{}, err
	}

	resp, err := d.worker.Submit(ctx, Request{
		Token:       token,
		StoragePath: desc.StoragePath,
		Filename:    desc.Filename,
		MimeType:    desc.MimeType,
	})
	outcome := d.classify(resp, err)
	d.recordOutcome(ctx, token, outcome, resp)
	d.metrics.ExtractDispatches.WithLabelValues(string(outcome.Status)).Inc()
	return outcome, nil
}

// classify maps the worker answer onto the extraction sub-machine.
func (d *Dispatcher) classify(resp Response, err error) Outcome {
	switch {
	case err != nil:
		// Connection-level failure: the worker endpoint is unreachable or
		// not provisioned.
		return Outcome{Status: models.ExtractNotDeployed, Detail: truncate(err.Error(), maxBodyExcerpt)}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Status: models.ExtractQueued, WorkerStatus: resp.StatusCode}
	case resp.StatusCode == 401:
		return Outcome{
			Status:       models.ExtractAuthFailed,
			WorkerStatus: resp.StatusCode,
			Detail:       "worker rejected shared secret; check extraction secret configuration",
		}
	case resp.StatusCode == 404:
		return Outcome{
			Status:       models.ExtractNotDeployed,
			WorkerStatus: resp.StatusCode,
			Detail:       "worker endpoint not found",
		}
	default:
		detail := "worker " + http.StatusText(resp.StatusCode) + ": " + string(resp.Body)
		return Outcome{
			Status:       models.ExtractFailed,
			WorkerStatus: resp.StatusCode,
			Detail:       truncate(detail, maxBodyExcerpt),
		}
	}
}

func (d *Dispatcher) recordOutcome(ctx context.Context, token string, outcome Outcome, resp Response) {
	now := d.now().UTC()
	fragment := map[string]any{
		models.KeyExtractStatus: string(outcome.Status),
	}
	if outcome.Status == models.ExtractQueued {
		fragment[models.KeyExtractQueuedAt] = now.Format(time.RFC3339)
		if resp.Accepted != nil {
			fragment[models.KeyWorkerResponse] = resp.Accepted
		}
	} else {
		fragment[models.KeyExtractFailedAt] = now.Format(time.RFC3339)
		fragment[models.KeyExtractError] = outcome.Detail
	}
	d.record(ctx, token, fragment)
}

func (d *Dispatcher) record(ctx context.Context, token string, fragment map[string]any) {
	if _, err := d.cases.MergePayload(ctx, token, fragment, d.now().UTC()); err != nil {
		d.logger.WarnContext(ctx, "failed to record dispatch outcome", "token", token, "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
