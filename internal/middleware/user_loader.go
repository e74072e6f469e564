package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/service"
)

type ctxKey string

const UserKey ctxKey = "user"

const UserIDHeader = "X-User-ID"

// GetUser extracts user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// UserID returns the id of the user in ctx, or "" when none was loaded.
func UserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// UserLoader returns middleware that loads the acting user into context.
// The id comes from the user_id query parameter, then the X-User-ID header,
// then falls back to the default user. The user's last_login is refreshed.
func UserLoader(users *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.URL.Query().Get("user_id"))
			if id == "" {
				id = strings.TrimSpace(r.Header.Get(UserIDHeader))
			}

			user, err := users.FindOrCreate(r.Context(), id)
			if err != nil {
				slog.Error("load user", "error", err, "user_id", id)
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}
			users.Touch(r.Context(), user.ID)

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
