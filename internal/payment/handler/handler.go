// Package handler exposes the checkout and webhook endpoints.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	dErrors "caseflow/pkg/domainerrors"
)

// maxWebhookBody bounds how much of a gateway delivery is read.
const maxWebhookBody = 1 << 20

// Service defines the payment operations this handler needs.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	CreateCheckout(ctx context.Context, token, email string) (string, error)
}

type Handler struct {
	payments Service
	logger   *slog.Logger
}

func New(payments Service, logger *slog.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

// Register mounts the payment routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payments/checkout-session", h.handleCreateCheckout)
	r.Post("/payments/webhook", h.handleWebhook)
}

type checkoutRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
	// Payload is accepted for compatibility with older clients that bundled
	// a final save with checkout; it is ignored here — saves go through
	// /cases/save.
	Payload map[string]any `json:"payload,omitempty"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	url, err := h.payments.CreateCheckout(ctx, req.Token, req.Email)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeInvalidInput) && !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "checkout creation failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// handleWebhook consumes raw gateway deliveries. The body must be read
// verbatim: signature verification covers the exact bytes on the wire.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unreadable request body"))
		return
	}

	err = h.payments.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "webhook processing failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
