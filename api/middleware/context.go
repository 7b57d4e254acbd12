package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
)

type contextKey string

const (
	ctxAuth     contextKey = "auth_context"
	ctxAccessID contextKey = "access_id"
)

// AuthContextFromContext returns the identity attached by Auth.
func AuthContextFromContext(ctx context.Context) (pkgAuth.AuthContext, bool) {
	if ctx == nil {
		return pkgAuth.AuthContext{}, false
	}
	v, ok := ctx.Value(ctxAuth).(pkgAuth.AuthContext)
	return v, ok
}

// AccessIDFromContext returns the session id (jti) of the current token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string {
	ident, ok := AuthContextFromContext(ctx)
	if !ok {
		return ""
	}
	return ident.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	ident, ok := AuthContextFromContext(ctx)
	if !ok {
		return ""
	}
	return string(ident.Role)
}

// WithAuthContext injects an identity into the context. Tests use it to skip token parsing.
func WithAuthContext(ctx context.Context, ident pkgAuth.AuthContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAuth, ident)
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}
