// Package handler exposes the case save/read endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/cases/models"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	dErrors "caseflow/pkg/domainerrors"
)

// Service defines the case facade operations this handler needs.
type Service interface {
	SaveCase(ctx context.Context, token string, fragment map[string]any) (models.Case, error)
	GetCase(ctx context.Context, token string) (models.Case, error)
}

type Handler struct {
	cases  Service
	logger *slog.Logger
}

func New(cases Service, logger *slog.Logger) *Handler {
	return &Handler{cases: cases, logger: logger}
}

// Register mounts the case routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases/save", h.handleSave)
	r.Get("/cases/read", h.handleRead)
	r.Post("/cases/read", h.handleRead)
}

type saveRequest struct {
	Token   string         `json:"token"`
	Payload map[string]any `json:"payload"`
}

type saveResponse struct {
	Success bool   `json:"success"`
	CaseID  string `json:"case_id"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Token == "" || req.Payload == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token and payload are required"))
		return
	}

	saved, err := h.cases.SaveCase(ctx, req.Token, req.Payload)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "save case failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, saveResponse{Success: true, CaseID: saved.ID})
}

// readResponse is the public case projection: email masked, payment receipt
// fields omitted.
type readResponse struct {
	ID        string         `json:"id"`
	Token     string         `json:"token"`
	Email     string         `json:"email,omitempty"`
	Unlocked  bool           `json:"unlocked"`
	Status    string         `json:"status"`
	CreatedAt string         `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

type readRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var token string
	switch r.Method {
	case http.MethodGet:
		token = r.URL.Query().Get("token")
	default:
		var req readRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
			return
		}
		token = req.Token
	}
	if token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token is required"))
		return
	}

	c, err := h.cases.GetCase(ctx, token)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) && !dErrors.Is(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "read case failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, readResponse{
		ID:        c.ID,
		Token:     c.Token,
		Email:     models.MaskEmail(c.Email),
		Unlocked:  c.Unlocked,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Payload:   c.Payload,
	})
}
