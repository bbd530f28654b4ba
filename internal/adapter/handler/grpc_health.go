package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/marketplace-cart/internal/core/service"
)

const CartServiceName = "marketplace.cart.v1.Cart"

// HealthReporter mirrors the cart store's readiness into the standard gRPC
// health service, both for the named cart service and the server as a whole.
type HealthReporter struct {
	server      *health.Server
	cartService *service.CartService
}

func NewHealthReporter(server *health.Server, cartService *service.CartService) *HealthReporter {
	return &HealthReporter{server: server, cartService: cartService}
}

func (h *HealthReporter) Update() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.cartService.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(CartServiceName, status)
	return status
}

// Watch refreshes the status every interval until ctx is done.
func (h *HealthReporter) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Update()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Update()
		}
	}
}

func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
