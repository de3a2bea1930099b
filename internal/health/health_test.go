package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeBrowser struct{ err error }

func (f fakeBrowser) Healthy(ctx context.Context) error { return f.err }

type fakeDB struct{ err error }

func (f fakeDB) Ping(ctx context.Context) error { return f.err }

func newTestServer(browserErr, dbErr, queueErr error) *Server {
	return New("test", fakeBrowser{err: browserErr}, fakeDB{err: dbErr}, func(ctx context.Context) (QueueStats, error) {
		if queueErr != nil {
			return QueueStats{}, queueErr
		}
		return QueueStats{Waiting: 3, Active: 1, Completed: 10, Failed: 2}, nil
	})
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth_ReturnsHealthyEnvelope(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rec := do(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version test, got %v", body["version"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("expected uptime field")
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestHealthLive_ReturnsHealthyEnvelope(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rec := do(s, http.MethodGet, "/health/live")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", body["status"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("expected uptime field")
	}
}

func TestReady_OKWhenAllHealthy(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rec := do(s, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReady_503WhenDatabaseDown(t *testing.T) {
	s := newTestServer(nil, errors.New("connection refused"), nil)
	rec := do(s, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReady_503WhenBrowserDown(t *testing.T) {
	s := newTestServer(errors.New("browser disconnected"), nil, nil)
	rec := do(s, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReady_503WhenQueueUnreachable(t *testing.T) {
	s := newTestServer(nil, nil, errors.New("redis unreachable"))
	rec := do(s, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMetrics_RendersJSONCounters(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rec := do(s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["uptime"]; !ok {
		t.Error("expected uptime field")
	}
	queue, ok := body["queue"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected queue object, got %v", body["queue"])
	}
	for _, key := range []string{"waiting", "active", "completed", "failed"} {
		if _, ok := queue[key]; !ok {
			t.Errorf("expected queue.%s field", key)
		}
	}
}

func TestMetrics_503WhenQueueUnreachable(t *testing.T) {
	s := newTestServer(nil, nil, errors.New("redis unreachable"))
	rec := do(s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
