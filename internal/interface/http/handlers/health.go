package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	// Check performs a health check and returns the status.
	Check(ctx context.Context) HealthStatus

	// AddCheck adds a named health check function.
	AddCheck(name string, check HealthCheckFunc)

	// RemoveCheck removes a named health check.
	RemoveCheck(name string)
}

// HealthCheckFunc is a function that performs a single health check.
// It returns an error if the check fails.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus represents the overall health status of the service.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration_ms"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Healthy  bool          `json:"healthy"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms"`
	Error    string        `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// CompositeHealthChecker runs multiple health checks in parallel.
type CompositeHealthChecker struct {
	checks  map[string]HealthCheckFunc
	timeout time.Duration
	mu      sync.RWMutex
}

// NewCompositeHealthChecker creates a new composite health checker.
func NewCompositeHealthChecker() *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:  make(map[string]HealthCheckFunc),
		timeout: 5 * time.Second,
	}
}

// AddCheck adds a named health check.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RemoveCheck removes a health check.
func (c *CompositeHealthChecker) RemoveCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Check runs all registered checks concurrently and aggregates the results.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	start := time.Now()

	c.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make(map[string]CheckResult, len(checks))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()

			checkStart := time.Now()
			err := check(ctx)
			duration := time.Since(checkStart)

			result := CheckResult{
				Healthy:  err == nil,
				Duration: duration / time.Millisecond,
			}
			if err != nil {
				result.Error = err.Error()
			}

			resultsMu.Lock()
			results[name] = result
			resultsMu.Unlock()
		}(name, check)
	}

	wg.Wait()

	healthy := true
	for _, result := range results {
		if !result.Healthy {
			healthy = false
			break
		}
	}

	return HealthStatus{
		Healthy:   healthy,
		Timestamp: time.Now().UTC(),
		Duration:  time.Since(start) / time.Millisecond,
		Checks:    results,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDARD CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything that can be pinged for liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDatabaseCheck creates a health check for the primary store.
func NewDatabaseCheck(db Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		return db.Ping(ctx)
	}
}

// NewCacheCheck creates a health check for the cache layer.
func NewCacheCheck(cache Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		if cache == nil {
			return fmt.Errorf("cache connection is nil")
		}
		return cache.Ping(ctx)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOOP HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// NoopHealthChecker always reports healthy. Used when no external
// dependencies need checking, e.g. with the in-memory store.
type NoopHealthChecker struct{}

// NewNoopHealthChecker creates a no-op health checker.
func NewNoopHealthChecker() *NoopHealthChecker {
	return &NoopHealthChecker{}
}

// Check always returns healthy.
func (n *NoopHealthChecker) Check(_ context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]CheckResult{},
	}
}

// AddCheck is a no-op.
func (n *NoopHealthChecker) AddCheck(_ string, _ HealthCheckFunc) {}

// RemoveCheck is a no-op.
func (n *NoopHealthChecker) RemoveCheck(_ string) {}
