package httpx

import (
	"context"
	"net/http"
)

// Identity is verified upstream by the gateway / identity provider; the
// core trusts these headers and performs no credential logic itself.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type ctxKey int

const identityKey ctxKey = 0

type Identity struct {
	UserID string
	Role   string
}

func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(HeaderUserID)
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing identity", Code: "UNAUTHENTICATED"})
			return
		}
		id := Identity{UserID: uid, Role: r.Header.Get(HeaderUserRole)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).Role != "admin" {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin only", Code: "FORBIDDEN"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}
