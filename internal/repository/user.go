package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/set-night/chatapp/internal/domain"
)

type UserRepository struct {
	store *Store
	now   func() time.Time
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store, now: time.Now}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	var (
		u            domain.User
		email        sql.NullString
		name         sql.NullString
		avatarURL    sql.NullString
		preferences  sql.NullString
		instructions sql.NullString
		lastLogin    sql.NullTime
	)
	err := r.store.queryRow(ctx, `SELECT id, email, name, avatar_url, preferences,
		custom_instructions, created_at, last_login FROM users WHERE id = ?`, id).
		Scan(&u.ID, &email, &name, &avatarURL, &preferences, &instructions, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Email = email.String
	u.Name = name.String
	u.AvatarURL = nullStringToPtr(avatarURL)
	u.Preferences = decodeObject(preferences)
	u.CustomInstructions = instructions.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.LastLogin = nullTimeToPtr(lastLogin)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	if u.Preferences == nil {
		u.Preferences = map[string]any{}
	}
	_, err := r.store.exec(ctx, `INSERT INTO users
		(id, email, name, avatar_url, preferences, custom_instructions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, stringToNullString(u.Email), stringToNullString(u.Name), ptrToNullString(u.AvatarURL),
		encodeObject(u.Preferences), stringToNullString(u.CustomInstructions), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	res, err := r.store.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
