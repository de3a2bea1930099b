// Package health exposes the worker's liveness/readiness/metrics surface
// over HTTP via echo, the one REST surface this module needs (the rest of
// the worker is a queue consumer with no inbound API).
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// BrowserChecker reports whether the shared browser pool is usable.
type BrowserChecker interface {
	Healthy(ctx context.Context) error
}

// DatabasePinger reports whether the persistence gateway can reach the
// database.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// QueueStats is the queue depth breakdown rendered by /metrics and checked
// for reachability by /health/ready.
type QueueStats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
}

// QueueStatsSource supplies the current queue depth breakdown. An error
// means the queue transport is unreachable.
type QueueStatsSource func(ctx context.Context) (QueueStats, error)

// Server wraps an echo.Echo configured with the four worker health routes.
type Server struct {
	echo      *echo.Echo
	startedAt time.Time
}

// New constructs a Server. version is reported on /health for deploy
// correlation; startedAt is recorded here and used to compute uptime on
// every response.
func New(version string, browser BrowserChecker, db DatabasePinger, queueStats QueueStatsSource) *Server {
	s := &Server{startedAt: time.Now()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.statusBody(version))
	})

	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.statusBody(version))
	})

	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		components := map[string]interface{}{}
		ready := true

		ready = checkComponent(components, "queue", ready, func() error {
			_, err := queueStats(ctx)
			return err
		})
		ready = checkComponent(components, "database", ready, func() error {
			return db.Ping(ctx)
		})
		ready = checkComponent(components, "browser", ready, func() error {
			return browser.Healthy(ctx)
		})

		status := http.StatusOK
		body := map[string]interface{}{"status": "ready", "components": components}
		if !ready {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
		}
		return c.JSON(status, body)
	})

	e.GET("/metrics", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		stats, err := queueStats(ctx)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": fmt.Sprintf("queue stats unavailable: %v", err),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"uptime": int64(time.Since(s.startedAt).Seconds()),
			"queue": map[string]int64{
				"waiting":   stats.Waiting,
				"active":    stats.Active,
				"completed": stats.Completed,
				"failed":    stats.Failed,
			},
		})
	})

	s.echo = e
	return s
}

// statusBody is the shared {status, version, uptime, timestamp} envelope
// returned by /health and /health/live.
func (s *Server) statusBody(version string) map[string]interface{} {
	return map[string]interface{}{
		"status":    "healthy",
		"version":   version,
		"uptime":    int64(time.Since(s.startedAt).Seconds()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// checkComponent runs check, records its latency and status under name, and
// returns readyBefore && (check succeeded).
func checkComponent(components map[string]interface{}, name string, readyBefore bool, check func() error) bool {
	start := time.Now()
	err := check()
	latencyMs := time.Since(start).Milliseconds()

	entry := map[string]interface{}{"latencyMs": latencyMs}
	if err != nil {
		entry["status"] = "unreachable"
		entry["error"] = err.Error()
	} else {
		entry["status"] = "ok"
	}
	components[name] = entry
	return readyBefore && err == nil
}

// Start serves on addr, blocking until the server stops or errors.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
