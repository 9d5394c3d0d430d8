package auth

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// API key generation and parsing
// ---------------------------------------------------------------------------

func TestGenerateAPIKey_Roundtrip(t *testing.T) {
	orgID := "3f6c1a2e-9d41-4b6f-8f0a-1c2d3e4f5a6b"

	key, hash, err := GenerateAPIKey("lf", orgID)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	if !strings.HasPrefix(key, "lf_"+orgID+"_") {
		t.Errorf("key %q does not embed the organization id", key)
	}
	// A key with a UUID org id is longer than bcrypt's 72-byte input cap;
	// minting works because only the secret part is hashed.
	if len(key) <= 72 {
		t.Fatalf("key length %d, expected a key beyond bcrypt's input cap", len(key))
	}

	parsed, secret, err := ParseAPIKey("lf", key)
	if err != nil {
		t.Fatalf("ParseAPIKey: %v", err)
	}
	if parsed != orgID {
		t.Errorf("parsed org id = %q, want %q", parsed, orgID)
	}

	if !ValidateAPIKey(secret, hash) {
		t.Error("freshly minted key does not validate against its own hash")
	}
	if ValidateAPIKey(secret+"x", hash) {
		t.Error("tampered secret validated")
	}
}

func TestGenerateAPIKey_PrefixUnderscoreNormalized(t *testing.T) {
	// Config carries the prefix as "lf_"; the separator underscore must not
	// double up in the minted key.
	key, _, err := GenerateAPIKey("lf_", "org-1")
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if strings.HasPrefix(key, "lf__") {
		t.Errorf("key %q has a doubled separator", key)
	}

	parsed, _, err := ParseAPIKey("lf_", key)
	if err != nil {
		t.Fatalf("ParseAPIKey: %v", err)
	}
	if parsed != "org-1" {
		t.Errorf("parsed org id = %q, want org-1", parsed)
	}
}

func TestGenerateAPIKey_KeysAreUnique(t *testing.T) {
	a, _, err := GenerateAPIKey("lf", "org-1")
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	b, _, err := GenerateAPIKey("lf", "org-1")
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if a == b {
		t.Error("two generated keys are identical")
	}
}

func TestParseAPIKey_Malformed(t *testing.T) {
	cases := []string{
		"",
		"lf_",
		"lf__random",
		"lf_org-1",
		"lf_org-1_",
		"wrongprefix_org-1_random",
		"lf-org-1-random",
	}
	for _, key := range cases {
		if _, _, err := ParseAPIKey("lf", key); err == nil {
			t.Errorf("ParseAPIKey(%q) accepted a malformed key", key)
		}
	}
}

// ---------------------------------------------------------------------------
// Bearer extraction
// ---------------------------------------------------------------------------

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc123")
	if err != nil {
		t.Fatalf("ExtractBearerToken: %v", err)
	}
	if token != "abc123" {
		t.Errorf("token = %q, want abc123", token)
	}

	for _, header := range []string{"", "abc123", "Basic abc123", "Bearer ", "Bearer    "} {
		if _, err := ExtractBearerToken(header); err == nil {
			t.Errorf("ExtractBearerToken(%q) accepted a bad header", header)
		}
	}
}
