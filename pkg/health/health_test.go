package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-character-chat-simulator/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCheckerCriticalStore(t *testing.T) {
	c := NewChecker(logger.Nop(), time.Minute)
	pingErr := errors.New("connection refused")
	c.RegisterStoreCheck(func(context.Context) error { return pingErr })
	c.RegisterGeneratorCheck(func() string { return "missing key" })

	c.RunChecks(context.Background())
	assert.False(t, c.IsSystemHealthy())

	status := c.GetStatus()
	assert.Equal(t, StatusDown, status["store"].Status)
	assert.Equal(t, "connection refused", status["store"].Error)
	assert.Equal(t, StatusDegraded, status["generator"].Status)

	pingErr = nil
	c.RunChecks(context.Background())
	assert.True(t, c.IsSystemHealthy())
}

func TestGRPCServerMirrorsChecker(t *testing.T) {
	c := NewChecker(logger.Nop(), time.Minute)
	var pingErr error = errors.New("down")
	c.RegisterStoreCheck(func(context.Context) error { return pingErr })

	s := NewGRPCServer(c, "simulator", logger.Nop())

	c.RunChecks(context.Background())
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: "simulator"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	pingErr = nil
	c.RunChecks(context.Background())
	resp, err = s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
