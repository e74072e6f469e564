package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/llm"
)

const messageColumns = `id, conversation_id, role, content, images, tokens, finish_reason,
	created_at, edited_at, parent_message_id`

type MessageRepository struct {
	store *Store
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{store: store, now: time.Now}
}

// stamp returns a creation time strictly after the previous one so that
// created_at ordering matches insertion order.
func (r *MessageRepository) stamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now().UTC().Truncate(time.Microsecond)
	if !t.After(r.last) {
		t = r.last.Add(time.Microsecond)
	}
	r.last = t
	return t
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := r.store.query(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.store.queryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) Append(ctx context.Context, params domain.NewMessage) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Content:        params.Content,
		Images:         params.Images,
		Tokens:         params.Tokens,
		CreatedAt:      r.stamp(),
	}
	if m.Images == nil {
		m.Images = []string{}
	}
	if params.FinishReason != "" {
		reason := params.FinishReason
		m.FinishReason = &reason
	}

	_, err := r.store.exec(ctx, `INSERT INTO messages
		(id, conversation_id, role, content, images, tokens, finish_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, encodeImages(m.Images),
		m.Tokens, ptrToNullString(m.FinishReason), m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// Edit replaces the content and stamps edited_at.
func (r *MessageRepository) Edit(ctx context.Context, id, content string) (*domain.Message, error) {
	res, err := r.store.exec(ctx, `UPDATE messages SET content = ?, edited_at = ? WHERE id = ?`,
		content, r.now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	} else if n == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return r.Get(ctx, id)
}

func (r *MessageRepository) Remove(ctx context.Context, id string) error {
	res, err := r.store.exec(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Transcript returns the conversation as provider messages, oldest first.
func (r *MessageRepository) Transcript(ctx context.Context, conversationID string) ([]llm.Message, error) {
	rows, err := r.store.query(ctx, `SELECT role, content, images FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var transcript []llm.Message
	for rows.Next() {
		var (
			m      llm.Message
			images sql.NullString
		)
		if err := rows.Scan(&m.Role, &m.Content, &images); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if decoded := decodeImages(images); len(decoded) > 0 {
			m.Images = decoded
		}
		transcript = append(transcript, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return transcript, nil
}

func scanMessage(s scanner) (*domain.Message, error) {
	var (
		m            domain.Message
		role         string
		images       sql.NullString
		finishReason sql.NullString
		editedAt     sql.NullTime
		parentID     sql.NullString
	)
	err := s.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &images, &m.Tokens,
		&finishReason, &m.CreatedAt, &editedAt, &parentID)
	if err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	m.Images = decodeImages(images)
	m.FinishReason = nullStringToPtr(finishReason)
	m.CreatedAt = m.CreatedAt.UTC()
	m.EditedAt = nullTimeToPtr(editedAt)
	m.ParentMessageID = nullStringToPtr(parentID)
	return &m, nil
}
