package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies registry API tokens.
	TokenPrefix = "corpus_"
	// TokenLength is the number of random bytes per token (256 bits).
	TokenLength = 32
)

// TokenGenerator generates and validates opaque API tokens. Tokens are
// returned to the caller once; only the SHA256 hash is ever stored.
type TokenGenerator struct{}

// NewTokenGenerator creates a token generator.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new token. It returns the full token, its
// storage hash, and a short display prefix for identification.
func (tg *TokenGenerator) GenerateToken() (token, tokenHash, displayPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("generating token bytes: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	full := TokenPrefix + encoded

	hash := sha256.Sum256([]byte(full))

	prefix := TokenPrefix
	if len(encoded) >= 8 {
		prefix = TokenPrefix + encoded[:8]
	}
	return full, hex.EncodeToString(hash[:]), prefix, nil
}

// HashToken computes the storage hash of a token for lookup.
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks that a token is well-formed before any
// storage lookup happens.
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	encoded, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}
