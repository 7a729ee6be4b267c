package auth

import (
	"context"

	"trusthub.org/internal/domain"
)

type userContextKey struct{}
type tokenContextKey struct{}

// ContextWithUser attaches the authenticated user to the context.
func ContextWithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, &u)
}

// UserFromContext extracts the authenticated user from the context.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	if ctx == nil {
		return domain.User{}, false
	}
	v, ok := ctx.Value(userContextKey{}).(*domain.User)
	if !ok || v == nil {
		return domain.User{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
