package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/listkeeper/listkeeper/internal/auth"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
)

// TokenCache remembers tokens that already passed Argon2id verification.
// Keys come from verificationKey. *cache.Cache satisfies it.
type TokenCache interface {
	IsTokenVerified(ctx context.Context, key string) bool
	MarkTokenVerified(ctx context.Context, key string) error
}

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger    *slog.Logger
	TokenHash string
	Cache     TokenCache
	// MinDuration overrides minAuthDuration; tests set it to zero.
	MinDuration *time.Duration
}

// AdminAuth returns a middleware that requires the admin bearer token.
// Successful verifications are cached by token fingerprint and configured
// hash so the Argon2id hash runs once per cache period, and a rotated hash
// stops accepting the old token immediately.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	minDuration := minAuthDuration
	if cfg.MinDuration != nil {
		minDuration = *cfg.MinDuration
	}
	hashTag := auth.QuickHash(cfg.TokenHash)[:16]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Ensure consistent timing regardless of outcome
			defer func() {
				elapsed := time.Since(startTime)
				if elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
			}()

			fail := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
			}

			token := extractBearerToken(r)
			if token == "" {
				fail("missing_token")
				return
			}
			if !auth.ValidateTokenFormat(token) {
				fail("invalid_format")
				return
			}

			fingerprint := auth.QuickHash(token)
			cacheKey := verificationKey(fingerprint, hashTag)
			cacheHit := cfg.Cache != nil && cfg.Cache.IsTokenVerified(r.Context(), cacheKey)

			if !cacheHit {
				match, err := auth.VerifySecret(token, cfg.TokenHash)
				if err != nil {
					cfg.Logger.Error("admin token hash is unusable",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
					return
				}
				if !match {
					fail("invalid_token")
					return
				}
				if cfg.Cache != nil {
					if err := cfg.Cache.MarkTokenVerified(r.Context(), cacheKey); err != nil {
						cfg.Logger.Warn("failed to cache token verification", slog.String("error", err.Error()))
					}
				}
			}

			cfg.Logger.Info("authentication successful",
				slog.String("token_fingerprint", fingerprint[:8]),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			authed := r.WithContext(auth.ContextWithAdmin(r.Context(), fingerprint))
			recordAdmin(authed)
			next.ServeHTTP(w, authed)
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing admin token"}}`))
}

// verificationKey ties a cached verification to the hash it was checked against.
func verificationKey(fingerprint, hashTag string) string {
	return fingerprint + ":" + hashTag
}
