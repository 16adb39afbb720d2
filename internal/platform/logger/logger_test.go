package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-live", "chapter", 3, "creator_id", "abc"})
	if len(out) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	if out[3] != 3 {
		t.Fatalf("plain value changed: %v", out[3])
	}
	hashed, _ := out[5].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "abc") {
		t.Fatalf("creator_id not hashed: %v", out[5])
	}
}

func TestSanitizeKVsJWTValue(t *testing.T) {
	jwtLike := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	out := sanitizeKVs([]interface{}{"header", jwtLike})
	if out[1] != "[REDACTED]" {
		t.Fatalf("jwt-like value not redacted: %v", out[1])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %#v", out)
	}
}
