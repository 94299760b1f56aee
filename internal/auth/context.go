package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const adminContextKey contextKey = "admin_fingerprint"

// ContextWithAdmin records the fingerprint of the token that authenticated
// the request.
func ContextWithAdmin(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, adminContextKey, fingerprint)
}

// AdminFromContext returns the admin token fingerprint, or "" if the request
// was not authenticated.
func AdminFromContext(ctx context.Context) string {
	fp, _ := ctx.Value(adminContextKey).(string)
	return fp
}
