package handlers

import (
	"net/http"
	"strings"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
)

const signingMethod = "HS256"

type MiddlewareProvider struct {
	Tokens primary.TokenService
}

// New returns a provider; a nil token service disables authentication
func New(tokens primary.TokenService) *MiddlewareProvider {
	return &MiddlewareProvider{
		Tokens: tokens,
	}
}

func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	if m == nil || m.Tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ResponseError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		ok, err := m.Tokens.VerifyTokenHMAC(r.Context(), tokenString, signingMethod)
		if err != nil || !ok {
			ResponseError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
