package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"caseflow/internal/cases/models"
	"caseflow/pkg/testutil"
	dErrors "caseflow/pkg/domainerrors"
)

// fakeService serves a fixed set of cases keyed by token.
type fakeService struct {
	cases map[string]models.Case
	saved []string
}

func (f *fakeService) SaveCase(_ context.Context, token string, fragment map[string]any) (models.Case, error) {
	token = models.NormalizeToken(token)
	if err := models.ValidateToken(token); err != nil {
		return models.Case{}, err
	}
	f.saved = append(f.saved, token)
	c := models.Case{ID: "id-" + token, Token: token, Status: models.StatusNew, Payload: fragment}
	f.cases[token] = c
	return c, nil
}

func (f *fakeService) GetCase(_ context.Context, token string) (models.Case, error) {
	token = models.NormalizeToken(token)
	if err := models.ValidateToken(token); err != nil {
		return models.Case{}, err
	}
	c, ok := f.cases[token]
	if !ok {
		return models.Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return c, nil
}

func newRouter(f *fakeService) http.Handler {
	r := chi.NewRouter()
	New(f, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestSaveCase(t *testing.T) {
	t.Run("saves and returns the case id", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/cases/save", map[string]any{
			"token":   "case_abc",
			"payload": map[string]any{"a": 1},
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "success", true)
		testutil.AssertJSONContains(t, rr, "case_id", "id-case_abc")
		assert.Equal(t, []string{"case_abc"}, f.saved)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/cases/save", map[string]any{
			"payload": map[string]any{"a": 1},
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/cases/save", map[string]any{
			"token": "case_abc",
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/cases/save", "{not json")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("bad token format rejected", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/cases/save", map[string]any{
			"token":   "nope",
			"payload": map[string]any{"a": 1},
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})
}

func TestReadCase(t *testing.T) {
	seeded := models.Case{
		ID:        "id-case_abc",
		Token:     "case_abc",
		Email:     "jasmine@example.com",
		Status:    models.StatusPaid,
		Unlocked:  true,
		Payload:   map[string]any{"a": float64(1)},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("reads via query parameter", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{"case_abc": seeded}}
		req := testutil.NewRequest(t, http.MethodGet, "/cases/read?token=case_abc")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "id-case_abc", (*resp)["id"])
		assert.Equal(t, "paid", (*resp)["status"])
		assert.Equal(t, true, (*resp)["unlocked"])
		assert.Equal(t, "2026-03-01T12:00:00Z", (*resp)["created_at"])
	})

	t.Run("reads via JSON body", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{"case_abc": seeded}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/cases/read", map[string]string{"token": "case_abc"})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "token", "case_abc")
	})

	t.Run("email is masked in the projection", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{"case_abc": seeded}}
		req := testutil.NewRequest(t, http.MethodGet, "/cases/read?token=case_abc")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertJSONContains(t, rr, "email", "ja*****@example.com")
	})

	t.Run("unknown token is 404", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewRequest(t, http.MethodGet, "/cases/read?token=case_missing")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, "not_found")
	})

	t.Run("missing token is 400", func(t *testing.T) {
		f := &fakeService{cases: map[string]models.Case{}}
		req := testutil.NewRequest(t, http.MethodGet, "/cases/read")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
