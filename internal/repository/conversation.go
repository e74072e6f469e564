package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

const conversationColumns = `id, user_id, project_id, title, model, settings, created_at, updated_at,
	last_message_at, is_archived, is_pinned, is_deleted, token_count, message_count`

type ConversationRepository struct {
	store        *Store
	defaultModel string
	now          func() time.Time
}

func NewConversationRepository(store *Store, defaultModel string) *ConversationRepository {
	return &ConversationRepository{store: store, defaultModel: defaultModel, now: time.Now}
}

// ListFilter narrows List. A nil Archived returns both partitions.
type ListFilter struct {
	Archived *bool
}

// List returns the user's non-deleted conversations, most recent activity first.
func (r *ConversationRepository) List(ctx context.Context, userID string, filter ListFilter) ([]domain.Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE user_id = ? AND is_deleted = ?`
	args := []any{userID, false}
	if filter.Archived != nil {
		q += ` AND is_archived = ?`
		args = append(args, *filter.Archived)
	}
	q += ` ORDER BY COALESCE(last_message_at, created_at) DESC`

	rows, err := r.store.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// Get returns the conversation with the given id, including soft-deleted ones.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.store.queryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepository) Create(ctx context.Context, params domain.CreateConversation) (*domain.Conversation, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = config.DefaultConversationTitle
	}
	model := params.Model
	if model == "" {
		model = r.defaultModel
	}
	var settings domain.Settings
	if params.Settings != nil {
		settings = *params.Settings
	}

	now := r.now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    params.UserID,
		ProjectID: params.ProjectID,
		Title:     title,
		Model:     model,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.store.exec(ctx, `INSERT INTO conversations
		(id, user_id, project_id, title, model, settings, created_at, updated_at,
		 is_archived, is_pinned, is_deleted, token_count, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		c.ID, c.UserID, ptrToNullString(c.ProjectID), c.Title, c.Model, settings.Encode(),
		now, now, false, false, false)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Update changes only the supplied fields and refreshes updated_at.
func (r *ConversationRepository) Update(ctx context.Context, id string, upd domain.ConversationUpdate) (*domain.Conversation, error) {
	if upd.IsEmpty() {
		return nil, domain.ErrNoFieldsToUpdate
	}

	var (
		sets []string
		args []any
	)
	switch {
	case upd.ClearTitle:
		sets = append(sets, "title = NULL")
	case upd.Title != nil:
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	switch {
	case upd.ClearModel:
		sets = append(sets, "model = NULL")
	case upd.Model != nil:
		sets = append(sets, "model = ?")
		args = append(args, *upd.Model)
	}
	if upd.Settings != nil {
		sets = append(sets, "settings = ?")
		args = append(args, upd.Settings.Encode())
	}
	if upd.Archived != nil {
		sets = append(sets, "is_archived = ?")
		args = append(args, *upd.Archived)
	}
	if upd.Pinned != nil {
		sets = append(sets, "is_pinned = ?")
		args = append(args, *upd.Pinned)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().UTC(), id)

	q := `UPDATE conversations SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if err := r.execOne(ctx, "update conversation", q, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *ConversationRepository) SetArchived(ctx context.Context, id string, archived bool) (*domain.Conversation, error) {
	return r.Update(ctx, id, domain.ConversationUpdate{Archived: &archived})
}

func (r *ConversationRepository) SetPinned(ctx context.Context, id string, pinned bool) (*domain.Conversation, error) {
	return r.Update(ctx, id, domain.ConversationUpdate{Pinned: &pinned})
}

// SetTitle renames the conversation without touching updated_at.
func (r *ConversationRepository) SetTitle(ctx context.Context, id, title string) error {
	return r.execOne(ctx, "set conversation title",
		`UPDATE conversations SET title = ? WHERE id = ?`, title, id)
}

// SoftDelete flags the conversation as deleted. Messages are kept.
func (r *ConversationRepository) SoftDelete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete conversation",
		`UPDATE conversations SET is_deleted = ?, updated_at = ? WHERE id = ?`,
		true, r.now().UTC(), id)
}

// RecordExchange accounts for one user message and one assistant reply.
func (r *ConversationRepository) RecordExchange(ctx context.Context, id string, tokens int, at time.Time) error {
	at = at.UTC()
	return r.execOne(ctx, "record exchange",
		`UPDATE conversations
		SET message_count = message_count + 2,
			token_count = token_count + ?,
			last_message_at = ?,
			updated_at = ?
		WHERE id = ?`,
		tokens, at, at, id)
}

func (r *ConversationRepository) execOne(ctx context.Context, op, q string, args ...any) error {
	res, err := r.store.exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func scanConversation(s scanner) (*domain.Conversation, error) {
	var (
		c             domain.Conversation
		projectID     sql.NullString
		title         sql.NullString
		model         sql.NullString
		settings      sql.NullString
		lastMessageAt sql.NullTime
	)
	err := s.Scan(&c.ID, &c.UserID, &projectID, &title, &model, &settings,
		&c.CreatedAt, &c.UpdatedAt, &lastMessageAt,
		&c.IsArchived, &c.IsPinned, &c.IsDeleted, &c.TokenCount, &c.MessageCount)
	if err != nil {
		return nil, err
	}
	c.ProjectID = nullStringToPtr(projectID)
	c.Title = title.String
	c.Model = model.String
	c.Settings = domain.ParseSettings(settings.String)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.LastMessageAt = nullTimeToPtr(lastMessageAt)
	return &c, nil
}
