package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// Middleware protects HTTP handlers with bearer JWTs and answers failures
// with RFC 6750 WWW-Authenticate headers.
type Middleware struct {
	validator TokenValidator
	required  bool
	logger    *zap.Logger
}

// NewMiddleware creates the middleware. When required is false, requests
// without an Authorization header pass through unauthenticated; a header
// that is present must still be valid.
func NewMiddleware(validator TokenValidator, required bool, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		validator: validator,
		required:  required,
		logger:    logger.Named("auth"),
	}
}

// Wrap returns next guarded by bearer authentication.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if errors.Is(err, ErrMissingAuthorization) && !m.required {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			m.logger.Debug("Auth failed: missing or malformed bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_request", "A bearer token is required")
			return
		}

		claims, err := m.validator.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug("Auth failed: invalid token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, tokenString)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthFormat
	}
	return strings.TrimSpace(token), nil
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
func writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+errorCode+`", error_description="`+description+`"`)
	w.WriteHeader(status)
}
