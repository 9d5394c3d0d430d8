// Package auth provides the two authentication primitives: organization API
// keys (long-lived bcrypt-hashed ingest credentials) and user JWTs (stateless
// session tokens for the rules and insights surface). The request-time checks
// live in internal/middleware/auth.go.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of the key in bytes.
	APIKeyLength = 32

	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12
)

// GenerateAPIKey creates a new ingest key for an organization. The key embeds
// the organization id so request-time validation can load the right hash
// without a table scan: <prefix>_<orgID>_<random>.
// Only the random part is hashed: the prefix and org id carry no entropy and
// already travel in the clear, and bcrypt caps its input at 72 bytes, which a
// key with a UUID org id exceeds.
// Returns the full key (shown once) and the bcrypt hash to store.
func GenerateAPIKey(prefix, orgID string) (key string, hash string, err error) {
	prefix = strings.TrimSuffix(prefix, "_")
	randomBytes := make([]byte, APIKeyLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullKey := fmt.Sprintf("%s_%s_%s", prefix, orgID, randomPart)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(randomPart), BcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return fullKey, string(hashBytes), nil
}

// ParseAPIKey splits a key into the embedded organization id and the random
// secret part the stored hash covers.
func ParseAPIKey(prefix, key string) (orgID, secret string, err error) {
	prefix = strings.TrimSuffix(prefix, "_")
	rest, ok := strings.CutPrefix(key, prefix+"_")
	if !ok {
		return "", "", errors.New("malformed API key")
	}

	orgID, secret, ok = strings.Cut(rest, "_")
	if !ok || orgID == "" || secret == "" {
		return "", "", errors.New("malformed API key")
	}
	return orgID, secret, nil
}

// ValidateAPIKey checks a key's secret part against the stored hash.
func ValidateAPIKey(secret, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}

// ExtractBearerToken extracts the credential from an Authorization header.
// Expected format: "Bearer <token>".
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("credential is empty after Bearer prefix")
	}
	return token, nil
}
