package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/middleware"
	"github.com/set-night/chatapp/internal/service"
)

type sendMessageRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
	Model   string   `json:"model"`
}

type editMessageRequest struct {
	Content *string `json:"content"`
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.ListByConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err, "Failed to fetch messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage stores the user message and streams the assistant reply as
// server-sent events.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to send message")
		return
	}

	ctx := r.Context()
	ex, err := h.relay.Begin(ctx, service.SendRequest{
		ConversationID: mux.Vars(r)["id"],
		UserID:         middleware.UserID(ctx),
		Content:        req.Content,
		Images:         req.Images,
		Model:          req.Model,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to send message")
		return
	}

	sse := newSSEWriter(w)
	sse.start()
	if err := ex.Stream(ctx, sse.Emit); err != nil {
		if errors.Is(err, domain.ErrUpstream) || errors.Is(err, domain.ErrStreamInterrupted) {
			return
		}
		slog.Debug("stream ended early", "error", err, "conversation_id", mux.Vars(r)["id"])
	}
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to update message")
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}

	m, err := h.messages.Edit(r.Context(), mux.Vars(r)["id"], *req.Content)
	if err != nil {
		writeDomainError(w, err, "Failed to update message")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err, "Failed to delete message")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Message deleted"})
}
