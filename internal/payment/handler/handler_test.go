package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"caseflow/pkg/testutil"
	dErrors "caseflow/pkg/domainerrors"
)

type fakePayments struct {
	webhookErr  error
	checkoutURL string
	checkoutErr error

	gotPayload   []byte
	gotSignature string
	gotToken     string
	gotEmail     string
}

func (f *fakePayments) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.gotPayload = payload
	f.gotSignature = signature
	return f.webhookErr
}

func (f *fakePayments) CreateCheckout(_ context.Context, token, email string) (string, error) {
	f.gotToken = token
	f.gotEmail = email
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return f.checkoutURL, nil
}

func newRouter(f *fakePayments) http.Handler {
	r := chi.NewRouter()
	New(f, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestCreateCheckout(t *testing.T) {
	t.Run("returns the hosted checkout url", func(t *testing.T) {
		f := &fakePayments{checkoutURL: "https://pay.example.com/cs_1"}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/checkout-session", map[string]string{
			"token": "case_abc",
			"email": "buyer@example.com",
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "url", "https://pay.example.com/cs_1")
		assert.Equal(t, "case_abc", f.gotToken)
		assert.Equal(t, "buyer@example.com", f.gotEmail)
	})

	t.Run("legacy payload field is tolerated", func(t *testing.T) {
		f := &fakePayments{checkoutURL: "https://pay.example.com/cs_1"}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/checkout-session", map[string]any{
			"token":   "case_abc",
			"email":   "buyer@example.com",
			"payload": map[string]any{"ignored": true},
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		f := &fakePayments{checkoutErr: dErrors.New(dErrors.CodeNotFound, "case not found; start a new case first")}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/checkout-session", map[string]string{
			"token": "case_ghost",
			"email": "buyer@example.com",
		})
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, "not_found")
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		f := &fakePayments{}
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/payments/checkout-session", "{not json")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestWebhook(t *testing.T) {
	t.Run("passes raw body and signature through verbatim", func(t *testing.T) {
		f := &fakePayments{}
		raw := `{"id":"evt_1","type":"checkout.session.completed"}`
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/payments/webhook", raw)
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "OK", rr.Body.String())
		assert.Equal(t, raw, string(f.gotPayload))
		assert.Equal(t, "t=1,v1=abc", f.gotSignature)
	})

	t.Run("signature failure is a client error", func(t *testing.T) {
		f := &fakePayments{webhookErr: dErrors.New(dErrors.CodeInvalidInput, "invalid webhook payload or signature")}
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/payments/webhook", "{}")
		req.Header.Set("Stripe-Signature", "bad")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("unknown case surfaces as server error for gateway retry", func(t *testing.T) {
		f := &fakePayments{webhookErr: dErrors.New(dErrors.CodeInternal, "no case for completed payment")}
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/payments/webhook", "{}")
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rr := testutil.DoRequest(newRouter(f), req)

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	})
}
