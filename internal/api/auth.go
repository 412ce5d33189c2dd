package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ctxKeySubject is the context key for the authenticated token subject.
const ctxKeySubject contextKey = "subject"

var errMissingToken = errors.New("missing bearer token")

// authMiddleware validates HS256 bearer tokens on protected routes.
// Authentication is off when no JWT secret is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secCfg.JWT.Secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := s.validateToken(r.Header.Get("Authorization"))
		if err != nil {
			s.logger.Debug("authentication failed",
				"error", err,
				"path", r.URL.Path,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			writeUnauthorized(w, "invalid or missing token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken parses an Authorization header value and returns the
// token subject.
func (s *Server) validateToken(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(*jwt.Token) (any, error) {
		return []byte(s.secCfg.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("reading subject: %w", err)
	}
	return subject, nil
}
