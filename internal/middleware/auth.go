package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chameleon-systems/chameleon/pkg/tokens"
)

const (
	OperatorKey contextKey = "operator"
	RolesKey    contextKey = "roles"
)

// AuthMiddleware gates the forensics API behind operator bearer tokens.
// The attacker-facing routes are never wrapped with this.
type AuthMiddleware struct {
	generator *tokens.TokenGenerator
}

func NewAuthMiddleware(generator *tokens.TokenGenerator) *AuthMiddleware {
	return &AuthMiddleware{
		generator: generator,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := m.generator.Validate(parts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, claims.Operator)
		ctx = context.WithValue(ctx, RolesKey, claims.Roles)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
