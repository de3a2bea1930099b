package urlguard

import (
	"context"
	"testing"
)

func TestValidateSyntactic_BlockedHosts(t *testing.T) {
	g := New()
	cases := []string{
		"http://localhost:3000",
		"http://127.0.0.1",
		"http://169.254.169.254",
		"http://10.0.0.5",
		"http://metadata.google.internal",
	}
	for _, c := range cases {
		if _, err := g.ValidateSyntactic(c); err == nil {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestValidateSyntactic_DisallowedScheme(t *testing.T) {
	g := New()
	_, err := g.ValidateSyntactic("ftp://example.com/file")
	ge, ok := err.(*Error)
	if !ok || ge.Reason != ReasonDisallowedScheme {
		t.Fatalf("expected DisallowedScheme, got %v", err)
	}
}

func TestValidateSyntactic_DefaultsScheme(t *testing.T) {
	g := New()
	p, err := g.ValidateSyntactic("example.com/a/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Normalized != "https://example.com/a/b" {
		t.Errorf("got %q", p.Normalized)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	g := New()
	inputs := []string{
		"HTTPS://Example.COM:443/foo/bar/?b=2&a=1#frag",
		"http://example.com/foo/bar/",
		"https://www.example.com",
	}
	for _, in := range inputs {
		p1, err := g.ValidateSyntactic(in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		p2, err := g.ValidateSyntactic(p1.Normalized)
		if err != nil {
			t.Fatalf("unexpected error renormalizing %q: %v", p1.Normalized, err)
		}
		if p1.Normalized != p2.Normalized {
			t.Errorf("normalize not idempotent: %q != %q", p1.Normalized, p2.Normalized)
		}
	}
}

func TestSameDomain(t *testing.T) {
	if !SameDomain("www.Example.com", "example.com") {
		t.Error("expected www-insensitive, case-insensitive match")
	}
	if SameDomain("example.com", "other.com") {
		t.Error("expected mismatch")
	}
}

func TestShouldSkipURL(t *testing.T) {
	skip := []string{
		"mailto:a@b.com",
		"tel:+123456",
		"javascript:void(0)",
		"data:text/plain;base64,abc",
		"https://example.com/doc.pdf",
		"https://example.com/archive.zip",
		"https://example.com/photo.png",
		"https://example.com/app.js",
	}
	for _, s := range skip {
		if !ShouldSkipURL(s) {
			t.Errorf("expected %q to be skipped", s)
		}
	}
	keep := []string{
		"https://example.com/about",
		"https://example.com/",
	}
	for _, s := range keep {
		if ShouldSkipURL(s) {
			t.Errorf("expected %q to be kept", s)
		}
	}
}

func TestResolveRelative_SameDomainOnly(t *testing.T) {
	g := New()
	base, _ := g.ValidateSyntactic("https://example.com/dir/page")
	same := g.ResolveRelative(base, "/other", true)
	if same == nil || same.Normalized != "https://example.com/other" {
		t.Fatalf("expected resolved same-domain url, got %#v", same)
	}
	cross := g.ResolveRelative(base, "https://other.com/x", true)
	if cross != nil {
		t.Fatalf("expected cross-domain link to be rejected, got %#v", cross)
	}
}

func TestValidateWithDNS_BlockedBeforeLookup(t *testing.T) {
	g := New()
	_, err := g.ValidateWithDNS(context.Background(), "http://192.168.1.1")
	ge, ok := err.(*Error)
	if !ok || ge.Reason != ReasonPrivateAddress {
		t.Fatalf("expected PrivateAddress without DNS lookup, got %v", err)
	}
}
