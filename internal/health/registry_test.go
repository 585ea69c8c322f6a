package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReport(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("postgres", CheckerFunc(func(context.Context) error { return nil }))
	r.Register("redis", CheckerFunc(func(context.Context) error { return errors.New("connection refused") }))

	assert.Equal(t, []string{"postgres", "redis"}, r.List())

	status := r.Report(context.Background())
	assert.False(t, status.Ready)
	assert.Equal(t, "ok", status.Services["postgres"])
	assert.Equal(t, "connection refused", status.Services["redis"])

	// Re-registering a name replaces its checker
	r.Register("redis", CheckerFunc(func(context.Context) error { return nil }))
	assert.True(t, r.Report(context.Background()).Ready)
}

func TestRegistryBoundsSlowChecks(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results := r.HealthCheckAll(context.Background())
	assert.ErrorIs(t, results["slow"], context.DeadlineExceeded)
}
