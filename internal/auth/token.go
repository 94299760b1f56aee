package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token format: lk_admin_{secret}, secret is 32 hex chars (16 bytes).
const (
	TokenPrefix    = "lk_admin_"
	TokenSecretLen = 32
)

// ErrInvalidTokenFormat indicates the token is not an admin token.
var ErrInvalidTokenFormat = errors.New("invalid admin token format")

var tokenFormatRegex = regexp.MustCompile(`^lk_admin_[a-f0-9]{32}$`)

// GeneratedToken is a new admin token. Plaintext is shown once; Hash goes
// into ADMIN_TOKEN_HASH.
type GeneratedToken struct {
	Plaintext   string
	Hash        string
	Fingerprint string
}

// GenerateAdminToken creates a random admin token and its Argon2id hash.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := TokenPrefix + hex.EncodeToString(secret)

	hash, err := HashSecret(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext:   plaintext,
		Hash:        hash,
		Fingerprint: QuickHash(plaintext),
	}, nil
}

// ValidateTokenFormat checks if token looks like an admin token.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}
