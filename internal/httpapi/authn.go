package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/auth"
	"trusthub.org/internal/domain"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Authenticate resolves the bearer token and stores the user on the context.
// Missing, malformed and unknown tokens are rejected with 401.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			handleError(w, r, err)
			return
		}
		user, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only users holding one of roles. It runs after Authenticate.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				handleError(w, r, apperr.Unauthenticated("no token provided"))
				return
			}
			if err := auth.Authorize(user, roles...); err != nil {
				handleError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.Unauthenticated("no token provided")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", apperr.Unauthenticated("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", apperr.Unauthenticated("no token provided")
	}
	return token, nil
}

func currentUser(r *http.Request) (domain.User, error) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		return domain.User{}, errors.New("httpapi: route is missing Authenticate")
	}
	return u, nil
}
