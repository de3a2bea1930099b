package logging

import "testing"

func TestIsSensitiveField(t *testing.T) {
	r := NewPayloadRedactor()
	cases := map[string]bool{
		"Authorization": true,
		"apiKey":        true,
		"userId":        false,
		"scanId":        false,
	}
	for field, want := range cases {
		if got := r.IsSensitiveField(field); got != want {
			t.Errorf("IsSensitiveField(%q) = %v, want %v", field, got, want)
		}
	}
}

func TestRedactValue_ShortSecretFullyHidden(t *testing.T) {
	r := NewPayloadRedactor()
	if got := r.RedactValue("token", "abc"); got != "***" {
		t.Errorf("expected full redaction for short secret, got %q", got)
	}
}

func TestRedactValue_LongSecretKeepsPrefixSuffix(t *testing.T) {
	r := NewPayloadRedactor()
	got := r.RedactValue("secret", "sk-1234567890abcdef")
	if got != "sk-1***cdef" {
		t.Errorf("unexpected redaction: %q", got)
	}
}

func TestRedactValue_NonSensitivePassesThrough(t *testing.T) {
	r := NewPayloadRedactor()
	if got := r.RedactValue("url", "https://example.com"); got != "https://example.com" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestRedactFields(t *testing.T) {
	r := NewPayloadRedactor()
	in := map[string]string{"token": "abcdefgh12", "url": "https://example.com"}
	out := r.RedactFields(in)
	if out["url"] != "https://example.com" {
		t.Errorf("expected url passthrough, got %q", out["url"])
	}
	if out["token"] == in["token"] {
		t.Error("expected token to be redacted")
	}
}
