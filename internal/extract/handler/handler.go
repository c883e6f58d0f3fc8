// Package handler exposes the inbound extraction trigger. It is a
// server-to-server endpoint guarded by the shared extraction secret, used by
// operators and upstream automation to (re)start extraction for one case.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/cases/models"
	"caseflow/internal/extract"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	dErrors "caseflow/pkg/domainerrors"
)

// CaseReader is the retry-tolerant lookup from the case facade.
type CaseReader interface {
	GetCase(ctx context.Context, token string) (models.Case, error)
}

type Handler struct {
	dispatcher *extract.Dispatcher
	reader     CaseReader
	secret     string
	logger     *slog.Logger
}

func New(dispatcher *extract.Dispatcher, reader CaseReader, secret string, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, reader: reader, secret: secret, logger: logger}
}

// Register mounts the extraction trigger route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/extract/start", h.handleStart)
}

type startRequest struct {
	Token       string `json:"token"`
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
}

type startResponse struct {
	OK          bool   `json:"ok"`
	Token       string `json:"token"`
	StoragePath string `json:"storage_path"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	incoming := strings.TrimSpace(r.Header.Get("X-Doc-Secret"))
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(incoming), []byte(h.secret)) != 1 {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unauthorized"))
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	token := models.NormalizeToken(req.Token)
	storagePath := strings.TrimSpace(req.StoragePath)
	if token == "" || storagePath == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token and storage_path are required"))
		return
	}

	if _, err := h.reader.GetCase(ctx, token); err != nil {
		shared.WriteError(w, err)
		return
	}

	outcome, err := h.dispatcher.Dispatch(ctx, token, extract.Descriptor{
		StoragePath: storagePath,
		Filename:    strings.TrimSpace(req.Filename),
		MimeType:    strings.TrimSpace(req.MimeType),
	})
	if err != nil {
		if errors.Is(err, extract.ErrNoCase) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "case not found"))
			return
		}
		h.logger.ErrorContext(ctx, "extraction trigger failed",
			"request_id", middleware.GetRequestID(ctx),
			"token", token,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to trigger extraction"))
		return
	}

	resp := startResponse{
		OK:          outcome.Status == models.ExtractQueued,
		Token:       token,
		StoragePath: storagePath,
		Status:      string(outcome.Status),
		Detail:      outcome.Detail,
	}
	if !resp.OK {
		// The worker (or its configuration) rejected the document; the case
		// records the diagnosis and the caller sees an upstream failure.
		shared.WriteJSON(w, http.StatusBadGateway, resp)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
