package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-pressing/internal/common"
)

const defaultCheckTimeout = 500 * time.Millisecond

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process readiness flag. The API clears it when shutdown
// starts so load balancers drain the instance before connections close.
func SetReady(v bool) { ready.Store(v) }

// Checker verifies one dependency.
type Checker struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

// Handler exposes the liveness and readiness endpoints.
type Handler struct {
	Checkers []Checker
}

// Report is the readiness response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every check concurrently and answers 503 if any fails or the
// process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, report)
}

// Check evaluates the checks without writing a response.
func (h Handler) Check(ctx context.Context) Report {
	report := Report{Status: "ok", Checks: make(map[string]string, len(h.Checkers))}
	if !ready.Load() {
		report.Status = "draining"
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range h.Checkers {
		g.Go(func() error {
			result := "ok"
			if err := runChecker(gctx, p); err != nil {
				result = err.Error()
			}
			mu.Lock()
			report.Checks[p.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if report.Status == "ok" {
		for _, result := range report.Checks {
			if result != "ok" {
				report.Status = "degraded"
				break
			}
		}
	}
	return report
}

func runChecker(ctx context.Context, p Checker) error {
	if p.Check == nil {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
