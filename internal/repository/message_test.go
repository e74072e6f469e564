package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/chatapp/internal/domain"
)

func newTestConversation(t *testing.T, store *Store) *domain.Conversation {
	t.Helper()
	c, err := NewConversationRepository(store, testModel).Create(context.Background(),
		domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)
	return c
}

func TestMessageAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := newTestConversation(t, store)
	repo := NewMessageRepository(store)

	first, err := repo.Append(ctx, domain.NewMessage{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        "hi",
		Images:         []string{"data:image/png;base64,AAA"},
	})
	require.NoError(t, err)
	second, err := repo.Append(ctx, domain.NewMessage{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        "hello",
		Tokens:         3,
		FinishReason:   "end_turn",
	})
	require.NoError(t, err)

	list, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, []string{"data:image/png;base64,AAA"}, list[0].Images)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, 3, list[1].Tokens)
	require.NotNil(t, list[1].FinishReason)
	assert.Equal(t, "end_turn", *list[1].FinishReason)
	assert.Equal(t, []string{}, list[1].Images)

	transcript, err := repo.Transcript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "hello", transcript[1].Content)
}

func TestMessageSameInstantKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := newTestConversation(t, store)
	repo := NewMessageRepository(store)
	at := conv.CreatedAt
	repo.now = func() time.Time { return at }

	var ids []string
	for i := 0; i < 5; i++ {
		m, err := repo.Append(ctx, domain.NewMessage{ConversationID: conv.ID, Role: domain.RoleUser, Content: "x"})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	list, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, m := range list {
		assert.Equal(t, ids[i], m.ID)
	}
}

func TestMessageMalformedImages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := newTestConversation(t, store)
	repo := NewMessageRepository(store)

	m, err := repo.Append(ctx, domain.NewMessage{ConversationID: conv.ID, Role: domain.RoleUser, Content: "x"})
	require.NoError(t, err)
	_, err = store.exec(ctx, `UPDATE messages SET images = ? WHERE id = ?`, "not-json", m.ID)
	require.NoError(t, err)

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Images)
}

func TestMessageInvalidRoleRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := newTestConversation(t, store)

	_, err := NewMessageRepository(store).Append(ctx, domain.NewMessage{ConversationID: conv.ID, Role: "robot", Content: "x"})
	assert.Error(t, err)
}

func TestMessageEditAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := newTestConversation(t, store)
	repo := NewMessageRepository(store)

	m, err := repo.Append(ctx, domain.NewMessage{ConversationID: conv.ID, Role: domain.RoleUser, Content: "draft"})
	require.NoError(t, err)
	assert.Nil(t, m.EditedAt)

	edited, err := repo.Edit(ctx, m.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.Equal(t, domain.RoleUser, edited.Role)
	assert.NotNil(t, edited.EditedAt)

	_, err = repo.Edit(ctx, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	require.NoError(t, repo.Remove(ctx, m.ID))
	assert.ErrorIs(t, repo.Remove(ctx, m.ID), domain.ErrMessageNotFound)

	list, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
