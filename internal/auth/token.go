package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of generated capability tokens.
const TokenBytes = 64

var secret []byte

// Init sets the HMAC secret used for token hashing.
func Init(s string) error {
	if s == "" {
		return fmt.Errorf("auth secret must not be empty")
	}
	secret = []byte(s)
	return nil
}

// GenToken mints a fresh URL-safe token and its stored hash. The plaintext
// token is handed to the caller exactly once; only the hash persists.
func GenToken() (token, tokenHash string, err error) {
	raw := make([]byte, TokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashToken(token), nil
}

// HashToken returns the hex HMAC-SHA-256 of a token under the server secret.
func HashToken(token string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidToken reports whether a presented token matches the stored hash.
// Comparison is constant-time.
func ValidToken(candidate, storedHash string) bool {
	return hmac.Equal([]byte(HashToken(candidate)), []byte(storedHash))
}
