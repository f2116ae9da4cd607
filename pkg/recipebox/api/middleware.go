package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal_id"

// PrincipalCtx resolves the authenticated user's id from the verified JWT's
// "sub" claim and stores it in the request context. It must run after
// jwtauth.Verifier and jwtauth.Authenticator.
func PrincipalCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, _ := claims["sub"].(string)
		id, err := uuid.Parse(sub)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalID returns the authenticated user id stored by PrincipalCtx.
func PrincipalID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey).(uuid.UUID)
	return id, ok
}

// WithPrincipal returns a context carrying the given user id as the
// authenticated principal. Test helper.
func WithPrincipal(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey, id)
}
