package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/store"
	"caseflow/internal/extract"
	"caseflow/internal/platform/metrics"
	"caseflow/pkg/testutil"
	dErrors "caseflow/pkg/domainerrors"
)

const testSecret = "shared-secret"

type acceptingWorker struct {
	status int
}

func (w acceptingWorker) Submit(context.Context, extract.Request) (extract.Response, error) {
	return extract.Response{StatusCode: w.status}, nil
}

type storeReader struct {
	store store.CaseStore
}

func (r storeReader) GetCase(ctx context.Context, token string) (models.Case, error) {
	c, err := r.store.Find(ctx, token)
	if err != nil {
		return models.Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return c, nil
}

func newRouter(t *testing.T, cases *store.InMemory, worker extract.Worker) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := extract.NewDispatcher(cases, worker, logger, metrics.New(prometheus.NewRegistry()), time.Second)
	r := chi.NewRouter()
	New(dispatcher, storeReader{cases}, testSecret, logger).Register(r)
	return r
}

func seedCase(t *testing.T, cases *store.InMemory, token string) {
	t.Helper()
	_, _, err := cases.Upsert(context.Background(), token, map[string]any{}, time.Now().UTC())
	require.NoError(t, err)
}

func startBody(token string) map[string]string {
	return map[string]string{
		"token":        token,
		"storage_path": "docs/n.pdf",
		"filename":     "n.pdf",
		"mime_type":    "application/pdf",
	}
}

func TestStartExtraction(t *testing.T) {
	t.Run("missing secret is unauthorized", func(t *testing.T) {
		cases := store.NewInMemory()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", startBody("case_abc"))
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{200}), req)

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("wrong secret is unauthorized", func(t *testing.T) {
		cases := store.NewInMemory()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", startBody("case_abc"))
		req.Header.Set("X-Doc-Secret", "guess")
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{200}), req)

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertErrorCode(t, rr, "unauthorized")
	})

	t.Run("queues a known case", func(t *testing.T) {
		cases := store.NewInMemory()
		seedCase(t, cases, "case_abc")

		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", startBody("case_abc"))
		req.Header.Set("X-Doc-Secret", testSecret)
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{202}), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "ok", true)
		testutil.AssertJSONContains(t, rr, "status", "queued")

		c, err := cases.Find(context.Background(), "case_abc")
		require.NoError(t, err)
		require.Equal(t, "queued", c.Payload[models.KeyExtractStatus])
	})

	t.Run("worker failure is a bad gateway with diagnosis", func(t *testing.T) {
		cases := store.NewInMemory()
		seedCase(t, cases, "case_abc")

		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", startBody("case_abc"))
		req.Header.Set("X-Doc-Secret", testSecret)
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{401}), req)

		testutil.AssertStatus(t, rr, http.StatusBadGateway)
		testutil.AssertJSONContains(t, rr, "ok", false)
		testutil.AssertJSONContains(t, rr, "status", "auth_failed")
	})

	t.Run("unknown case is 404", func(t *testing.T) {
		cases := store.NewInMemory()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", startBody("case_missing"))
		req.Header.Set("X-Doc-Secret", testSecret)
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{200}), req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("missing storage path rejected", func(t *testing.T) {
		cases := store.NewInMemory()
		seedCase(t, cases, "case_abc")

		req := testutil.NewJSONRequest(t, http.MethodPost, "/extract/start", map[string]string{"token": "case_abc"})
		req.Header.Set("X-Doc-Secret", testSecret)
		rr := testutil.DoRequest(newRouter(t, cases, acceptingWorker{200}), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
