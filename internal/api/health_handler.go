package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthCheck is one dependency probed by /health and /health/ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status    string                    `json:"status"` // "healthy", "degraded"
	Version   string                    `json:"version"`
	Uptime    string                    `json:"uptime"`
	Timestamp time.Time                 `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks,omitempty"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	healthVersion = "1.0.0"
	healthTimeout = 3 * time.Second
)

// HealthCheck returns the status of every registered dependency. It always
// answers 200; use /health/ready for probes that need a 503.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	status := "healthy"
	if !allUp(checks) {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, HealthStatus{
		Status:    status,
		Version:   healthVersion,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// Live reports that the process is serving requests.
//
//	GET /health/live
func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready answers 200 only when every registered dependency is up.
//
//	GET /health/ready
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	ready := allUp(checks)
	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"ready":  ready,
		"status": status,
		"checks": checks,
	})
}

// runChecks probes all dependencies concurrently.
func (h *Handlers) runChecks(ctx context.Context) map[string]ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]ComponentCheck, len(h.checks))
	)
	for _, c := range h.checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			start := time.Now()
			err := c.Check(ctx)
			cc := ComponentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				h.log.Warn("health check failed", "check", c.Name, "error", err)
				cc.Status = "down"
				cc.Message = "unavailable"
			}
			mu.Lock()
			checks[c.Name] = cc
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return checks
}

func allUp(checks map[string]ComponentCheck) bool {
	for _, c := range checks {
		if c.Status != "up" {
			return false
		}
	}
	return true
}
