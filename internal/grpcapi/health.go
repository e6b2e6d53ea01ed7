// Package grpcapi serves the standard grpc.health.v1 service so orchestrators
// can health-check the controller over gRPC.
package grpcapi

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "parked.Controller"

// ReadyFunc returns nil when the controller is ready.
type ReadyFunc func(ctx context.Context) error

type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	ready    ReadyFunc
	interval time.Duration
	log      *zap.Logger
}

func NewHealthServer(ready ReadyFunc, interval time.Duration, log *zap.Logger) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		grpc:     srv,
		health:   hs,
		ready:    ready,
		interval: interval,
		log:      log.Named("grpc-health"),
	}
}

// Serve checks once, then keeps the status current until ctx is cancelled,
// while serving on lis.  It returns when the listener fails or Stop is called.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)
	go s.watch(ctx)
	return s.grpc.Serve(lis)
}

// Check runs the readiness check and publishes the result.
func (s *HealthServer) Check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ready != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.ready(pctx)
		cancel()
		if err != nil {
			s.log.Debug("readiness check failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
