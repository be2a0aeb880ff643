package health

import (
	"context"
	"sync"
	"time"
)

// Status labels used in reports.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// CheckFunc probes one dependency.
type CheckFunc func(context.Context) error

// CheckResult reports a single check.
type CheckResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report is the aggregate health of the service.
type Report struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Checks  []CheckResult `json:"checks"`
}

// Up reports whether every check passed.
func (r Report) Up() bool {
	return r.Status == StatusUp
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds each check.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.timeout = timeout
	}
}

// WithVersion sets the version reported alongside the checks.
func WithVersion(version string) Option {
	return func(r *Registry) {
		r.version = version
	}
}

type namedCheck struct {
	name  string
	check CheckFunc
}

// Registry runs dependency checks. Results keep registration order.
type Registry struct {
	mu      sync.RWMutex
	checks  []namedCheck
	timeout time.Duration
	version string
}

// New creates a Registry.
func New(options ...Option) *Registry {
	registry := &Registry{timeout: 2 * time.Second}
	for _, opt := range options {
		opt(registry)
	}
	return registry
}

// Add registers a check, replacing any check with the same name.
func (r *Registry) Add(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.checks {
		if r.checks[i].name == name {
			r.checks[i].check = check
			return
		}
	}
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Remove deletes a check.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.checks {
		if r.checks[i].name == name {
			r.checks = append(r.checks[:i], r.checks[i+1:]...)
			return
		}
	}
}

// Check runs all checks concurrently and aggregates them.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checks := append([]namedCheck(nil), r.checks...)
	r.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, c, r.timeout)
		}()
	}
	wg.Wait()

	report := Report{Status: StatusUp, Version: r.version, Checks: results}
	for _, result := range results {
		if result.Status != StatusUp {
			report.Status = StatusDown
		}
	}
	return report
}

func runCheck(ctx context.Context, c namedCheck, timeout time.Duration) CheckResult {
	result := CheckResult{Name: c.name, Status: StatusUp}
	if c.check == nil {
		return result
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.check(ctx)
	result.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusDown
		result.Error = err.Error()
	}
	return result
}
