package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"trusthub.org/internal/obs"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves grpc.health.v1 for orchestrators. Both the overall
// status ("") and serviceName track whether the store answers pings.
type HealthServer struct {
	*health.Server
	store    pinger
	interval time.Duration
}

func NewHealthServer(p pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := &HealthServer{Server: health.NewServer(), store: p, interval: interval}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

// Probe pings the store once and publishes the result.
func (h *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		obs.Error("grpc_health_probe_failed", map[string]any{"error": err.Error()})
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(st)
	return st
}

// Run probes until ctx ends, then marks everything NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context) {
	h.Probe(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-t.C:
			h.Probe(ctx)
		}
	}
}

func (h *HealthServer) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", st)
	h.SetServingStatus(serviceName, st)
}
