// Package health tracks the dependencies the service needs to be ready.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a dependency is available
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Registry manages named dependency checkers
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry creates a new registry. Each check is bounded by timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		checkers: make(map[string]Checker),
		timeout:  timeout,
	}
}

// Register adds a checker to the registry
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// List returns all registered names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll runs all checks concurrently
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]error, len(checkers))
	)
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			err := c.HealthCheck(checkCtx)

			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	return results
}

// Status is a printable health report
type Status struct {
	Ready    bool              `json:"ready"`
	Services map[string]string `json:"services"`
}

// Report runs all checks and summarizes them
func (r *Registry) Report(ctx context.Context) Status {
	status := Status{Ready: true, Services: make(map[string]string)}
	for name, err := range r.HealthCheckAll(ctx) {
		if err != nil {
			status.Ready = false
			status.Services[name] = err.Error()
			continue
		}
		status.Services[name] = "ok"
	}
	return status
}
