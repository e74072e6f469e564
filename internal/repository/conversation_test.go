package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/chatapp/internal/domain"
)

const testModel = "claude-sonnet-4-5-20250929"

func TestConversationCreateDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "New Conversation", c.Title)
	assert.Equal(t, testModel, c.Model)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	assert.Nil(t, c.LastMessageAt)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	b, err := json.Marshal(got)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, map[string]any{}, raw["settings"])
	assert.Equal(t, false, raw["is_deleted"])
	assert.EqualValues(t, 0, raw["message_count"])
}

func TestConversationCreateThenGet(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	temp := 0.3
	c, err := repo.Create(ctx, domain.CreateConversation{
		UserID:   testUserID,
		Title:    "Test",
		Model:    "claude-opus-4-20250514",
		Settings: &domain.Settings{Temperature: &temp},
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", got.Title)
	assert.Equal(t, "claude-opus-4-20250514", got.Model)
	assert.False(t, got.IsDeleted)
	require.NotNil(t, got.Settings.Temperature)
	assert.InDelta(t, 0.3, *got.Settings.Temperature, 1e-9)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestConversationGetMissing(t *testing.T) {
	repo := NewConversationRepository(newTestStore(t), testModel)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationListExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	keep, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "keep"})
	require.NoError(t, err)
	gone, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "gone"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, gone.ID))

	list, err := repo.List(ctx, testUserID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	// Still stored.
	deleted, err := repo.Get(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	assert.ErrorIs(t, repo.SoftDelete(ctx, "missing"), domain.ErrConversationNotFound)
}

func TestConversationListOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = fixedClock(base, time.Minute)

	older, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "older"})
	require.NoError(t, err)
	newer, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "newer"})
	require.NoError(t, err)

	list, err := repo.List(ctx, testUserID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	// Activity on the older conversation moves it to the top.
	require.NoError(t, repo.RecordExchange(ctx, older.ID, 10, base.Add(time.Hour)))
	list, err = repo.List(ctx, testUserID, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, older.ID, list[0].ID)
}

func TestConversationUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = fixedClock(base, time.Second)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "before"})
	require.NoError(t, err)

	title := "after"
	got, err := repo.Update(ctx, c.ID, domain.ConversationUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, testModel, got.Model)
	assert.True(t, got.UpdatedAt.After(c.UpdatedAt))

	_, err = repo.Update(ctx, c.ID, domain.ConversationUpdate{})
	assert.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)

	_, err = repo.Update(ctx, "missing", domain.ConversationUpdate{Title: &title})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationUpdateClearsTitleAndModel(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID, Title: "named"})
	require.NoError(t, err)

	got, err := repo.Update(ctx, c.ID, domain.ConversationUpdate{ClearTitle: true, ClearModel: true})
	require.NoError(t, err)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.Model)

	var title, model *string
	require.NoError(t, repo.store.queryRow(ctx, `SELECT title, model FROM conversations WHERE id = ?`, c.ID).Scan(&title, &model))
	assert.Nil(t, title)
	assert.Nil(t, model)
}

func TestConversationSetTitleKeepsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)
	repo.now = fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), time.Minute)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)

	require.NoError(t, repo.SetTitle(ctx, c.ID, "Renamed"))
	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, c.UpdatedAt.Equal(got.UpdatedAt))

	assert.ErrorIs(t, repo.SetTitle(ctx, "missing", "x"), domain.ErrConversationNotFound)
}

func TestConversationArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)

	yes, no := true, false
	got, err := repo.SetArchived(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)

	active, err := repo.List(ctx, testUserID, ListFilter{Archived: &no})
	require.NoError(t, err)
	assert.Empty(t, active)
	archived, err := repo.List(ctx, testUserID, ListFilter{Archived: &yes})
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	_, err = repo.SetArchived(ctx, c.ID, false)
	require.NoError(t, err)
	active, err = repo.List(ctx, testUserID, ListFilter{Archived: &no})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	pinned, err := repo.SetPinned(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
}

func TestConversationRecordExchange(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestStore(t), testModel)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)

	at := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.RecordExchange(ctx, c.ID, 15, at))
	require.NoError(t, repo.RecordExchange(ctx, c.ID, 5, at.Add(time.Minute)))

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.MessageCount)
	assert.EqualValues(t, 20, got.TokenCount)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(at.Add(time.Minute)))

	assert.ErrorIs(t, repo.RecordExchange(ctx, "missing", 1, at), domain.ErrConversationNotFound)
}

func TestConversationMalformedSettings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewConversationRepository(store, testModel)

	c, err := repo.Create(ctx, domain.CreateConversation{UserID: testUserID})
	require.NoError(t, err)
	_, err = store.exec(ctx, `UPDATE conversations SET settings = ? WHERE id = ?`, "{not json", c.ID)
	require.NoError(t, err)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "{}", got.Settings.Encode())
}
