package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/marketplace-cart/internal/adapter/storage"
	"github.com/rl1809/marketplace-cart/internal/core/service"
)

func checkStatus(t *testing.T, srv *health.Server, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter_FollowsStore(t *testing.T) {
	svc := service.NewCartService(storage.NewMemoryAdapter(), service.Options{Logger: quietLogger()})
	srv := health.NewServer()
	reporter := NewHealthReporter(srv, svc)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, reporter.Update())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, srv, CartServiceName))

	require.NoError(t, svc.Initialize(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, reporter.Update())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, srv, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, srv, CartServiceName))

	svc.Close()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, reporter.Update())
}

func TestHealthReporter_Watch(t *testing.T) {
	svc := service.NewCartService(storage.NewMemoryAdapter(), service.Options{Logger: quietLogger()})
	srv := health.NewServer()
	reporter := NewHealthReporter(srv, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reporter.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.NoError(t, svc.Initialize(context.Background()))
	assert.Eventually(t, func() bool {
		return checkStatus(t, srv, CartServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
