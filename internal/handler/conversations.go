package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/listview"
	"github.com/set-night/chatapp/internal/middleware"
	"github.com/set-night/chatapp/internal/repository"
)

type createConversationRequest struct {
	Title     string           `json:"title"`
	Model     string           `json:"model"`
	UserID    string           `json:"user_id"`
	ProjectID *string          `json:"project_id"`
	Settings  *domain.Settings `json:"settings"`
}

// nullable tells an absent field from an explicit null.
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// IsNull reports an explicit null.
func (n nullable[T]) IsNull() bool { return n.Set && n.Value == nil }

type updateConversationRequest struct {
	Title      nullable[string] `json:"title"`
	Model      nullable[string] `json:"model"`
	Settings   *domain.Settings `json:"settings"`
	IsArchived *bool            `json:"is_archived"`
	IsPinned   *bool            `json:"is_pinned"`
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// parseBool reads an optional boolean query parameter.
func parseBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	archived, err := parseBool(r, "archived")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid archived parameter")
		return
	}

	conversations, err := h.conversations.List(r.Context(), middleware.UserID(r.Context()),
		repository.ListFilter{Archived: archived})
	if err != nil {
		writeDomainError(w, err, "Failed to fetch conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

// ConversationView renders the sidebar for the user.
func (h *Handler) ConversationView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	archived, err := parseBool(r, "archived")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid archived parameter")
		return
	}

	loc := time.UTC
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tz parameter")
			return
		}
	}

	collapsed := map[listview.Group]bool{}
	if raw := q.Get("collapsed"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			g, ok := listview.ParseGroup(name)
			if !ok {
				writeError(w, http.StatusBadRequest, "Unknown group: "+name)
				return
			}
			collapsed[g] = true
		}
	}

	conversations, err := h.conversations.List(r.Context(), middleware.UserID(r.Context()), repository.ListFilter{})
	if err != nil {
		writeDomainError(w, err, "Failed to fetch conversations")
		return
	}

	view := listview.Build(conversations, listview.Options{
		Query:     q.Get("q"),
		Archived:  archived != nil && *archived,
		Collapsed: collapsed,
		Now:       time.Now(),
		Location:  loc,
	})
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	// Soft-deleted conversations stay readable by id.
	c, err := h.conversations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err, "Failed to fetch conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to create conversation")
		return
	}

	userID := middleware.UserID(r.Context())
	if req.UserID != "" && req.UserID != userID {
		u, err := h.users.FindOrCreate(r.Context(), req.UserID)
		if err != nil {
			writeDomainError(w, err, "Failed to create conversation")
			return
		}
		userID = u.ID
	}

	c, err := h.conversations.Create(r.Context(), domain.CreateConversation{
		UserID:    userID,
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Model:     req.Model,
		Settings:  req.Settings,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req updateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to update conversation")
		return
	}

	c, err := h.conversations.Update(r.Context(), mux.Vars(r)["id"], domain.ConversationUpdate{
		Title:      req.Title.Value,
		Model:      req.Model.Value,
		ClearTitle: req.Title.IsNull(),
		ClearModel: req.Model.IsNull(),
		Settings:   req.Settings,
		Archived:   req.IsArchived,
		Pinned:     req.IsPinned,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to update conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.SoftDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err, "Failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Conversation deleted"})
}

func (h *Handler) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to archive conversation")
		return
	}
	c, err := h.conversations.SetArchived(r.Context(), mux.Vars(r)["id"], req.Archived)
	if err != nil {
		writeDomainError(w, err, "Failed to archive conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) PinConversation(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err, "Failed to pin conversation")
		return
	}
	c, err := h.conversations.SetPinned(r.Context(), mux.Vars(r)["id"], req.Pinned)
	if err != nil {
		writeDomainError(w, err, "Failed to pin conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
