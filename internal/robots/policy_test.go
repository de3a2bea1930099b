package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestIsAllowed_DenyMatchesDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	p := New()
	if allowed := p.IsAllowed(context.Background(), u.Scheme, u.Host, "/admin/dashboard", "A11yScanWorker"); allowed {
		t.Error("expected /admin to be disallowed")
	}
	if allowed := p.IsAllowed(context.Background(), u.Scheme, u.Host, "/public", "A11yScanWorker"); !allowed {
		t.Error("expected /public to be allowed")
	}
}

func TestIsAllowed_FailsOpenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	p := New()
	if allowed := p.IsAllowed(context.Background(), u.Scheme, u.Host, "/anything", "A11yScanWorker"); !allowed {
		t.Error("expected fail-open permit-everything on 404")
	}
}

func TestIsAllowed_FailsOpenOnUnreachable(t *testing.T) {
	p := New()
	if allowed := p.IsAllowed(context.Background(), "http", "127.0.0.1:1", "/x", "bot"); !allowed {
		t.Error("expected fail-open on connection failure")
	}
}

func TestIsAllowed_CachesAcrossCalls(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow: /x\n"))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	p := New()
	for i := 0; i < 5; i++ {
		p.IsAllowed(context.Background(), u.Scheme, u.Host, "/x", "bot")
	}
	if hits != 1 {
		t.Errorf("expected exactly one fetch due to caching, got %d", hits)
	}
}
