package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker_AllHealthy(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("always-ok", func(ctx context.Context) error { return nil }, time.Second)

	status := checker.CheckAll(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "ok", status.Checks["always-ok"])
}

func TestHealthChecker_FailureMarksUnhealthy(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("ok", func(ctx context.Context) error { return nil }, time.Second)
	checker.AddCheck("broken", func(ctx context.Context) error { return errors.New("down") }, time.Second)

	status := checker.CheckAll(context.Background())

	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "ok", status.Checks["ok"])
	assert.Equal(t, "down", status.Checks["broken"])
}

func TestHealthChecker_CheckTimeout(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	status := checker.CheckAll(context.Background())

	assert.Equal(t, "unhealthy", status.Status)
}
