package auth

import (
	"context"
	"net/http"
)

type contextKey string

const userIDContextKey contextKey = "auth-user-id"

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the id of the authenticated user that the
// auth middleware attached to the request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

// RequestUserID is UserIDFromContext for handlers. A missing user id
// means the request somehow bypassed the auth middleware, so it gets
// rejected here too.
func RequestUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}
