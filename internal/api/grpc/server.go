package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"rental-inventory-backend/internal/api/grpc/interceptor"
	"rental-inventory-backend/internal/logger"
)

// ServiceName is the health service name reported for the rental backend.
const ServiceName = "rental.v1.RentalService"

// Pinger reports whether a dependency (the database) is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps a grpc.Server exposing health checking and reflection.
type Server struct {
	*grpc.Server
	health *health.Server
}

func NewServer(opts ...grpc.ServerOption) *Server {
	logging := interceptor.NewLoggingInterceptor(
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	)
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logging.Unary())}, opts...)

	s := &Server{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.Server, s.health)
	reflection.Register(s.Server)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the rental service health status.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// WatchHealth pings p every interval until ctx is done and reports the
// result through the health service.
func (s *Server) WatchHealth(ctx context.Context, p Pinger, interval time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := p.Ping(pctx)
		if err != nil {
			logger.Warn("Health check failed", "error", err)
		}
		s.SetServing(err == nil)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// GracefulStop marks the server not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
