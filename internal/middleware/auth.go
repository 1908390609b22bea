package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/httputil"
	"github.com/zoomi/household-auth/internal/model"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	TokenContextKey   contextKey = "sessionToken"
)

// SessionValidator resolves a bearer token to its session.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.SessionRecord, error)
}

func GetSession(ctx context.Context) *model.SessionRecord {
	if session, ok := ctx.Value(SessionContextKey).(*model.SessionRecord); ok {
		return session
	}
	return nil
}

// GetToken returns the raw bearer token of the authenticated request.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}

type AuthMiddleware struct {
	sessions SessionValidator
}

func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		session, err := m.sessions.ValidateSession(r.Context(), token)
		if err != nil {
			if !apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
				log.Error().Err(err).Msg("auth middleware: session lookup failed")
			}
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		ctx = context.WithValue(ctx, TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the bearer token. The query parameter exists for event
// stream clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
