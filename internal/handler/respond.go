package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps err onto a status code. fallback is the message shown
// for internal errors; the full error is only logged.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, notFoundMessage(err))
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, domain.ErrProviderNotConfigured):
		writeError(w, http.StatusInternalServerError, "API key not configured")
	default:
		slog.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, domain.ErrMessageNotFound):
		return "Message not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return "User not found"
	default:
		return "Model not found"
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoFieldsToUpdate):
		return "No fields to update"
	case errors.Is(err, domain.ErrEmptyContent):
		return "Message content is required"
	default:
		return err.Error()
	}
}

// decodeJSON reads a JSON body. An empty body decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidRequest)
	}
	return nil
}
