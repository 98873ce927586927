package auth

import (
	"strings"
	"testing"
)

func TestInitRejectsEmptySecret(t *testing.T) {
	if err := Init(""); err == nil {
		t.Error("Expected error for empty secret")
	}
}

func TestGenTokenRoundTrip(t *testing.T) {
	if err := Init("test-secret"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	token, hash, err := GenToken()
	if err != nil {
		t.Fatalf("GenToken failed: %v", err)
	}

	if token == "" || hash == "" {
		t.Fatal("Expected non-empty token and hash")
	}

	if token == hash {
		t.Error("Token must not equal its hash")
	}

	if !ValidToken(token, hash) {
		t.Error("Freshly minted token should validate against its own hash")
	}

	if ValidToken(token+"x", hash) {
		t.Error("Tampered token should not validate")
	}
}

func TestGenTokenUnique(t *testing.T) {
	if err := Init("test-secret"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		token, _, err := GenToken()
		if err != nil {
			t.Fatalf("GenToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("Duplicate token generated")
		}
		seen[token] = true
	}
}

func TestHashDependsOnSecret(t *testing.T) {
	if err := Init("secret-one"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h1 := HashToken("same-token")

	if err := Init("secret-two"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h2 := HashToken("same-token")

	if h1 == h2 {
		t.Error("Hashes under different secrets must differ")
	}

	if strings.ContainsAny(h1, "ABCDEF") {
		t.Error("Expected lowercase hex hash")
	}
}
