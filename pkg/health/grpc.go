package health

import (
	"context"
	"fmt"
	"net"

	"ai-character-chat-simulator/backend/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the checker through the standard gRPC health protocol
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	log    *logger.Logger
}

// NewGRPCServer creates the server and mirrors the checker's overall health into it
func NewGRPCServer(checker *Checker, serviceName string, log *logger.Logger) *GRPCServer {
	s := &GRPCServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		log:    log.WithComponent("grpc_health"),
	}
	healthpb.RegisterHealthServer(s.server, s.health)

	set := func(healthy bool) {
		status := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus("", status)
		s.health.SetServingStatus(serviceName, status)
	}
	set(checker.IsSystemHealthy())
	checker.OnChange(set)

	return s
}

// Serve listens on port until ctx is done
func (s *GRPCServer) Serve(ctx context.Context, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()

	s.log.Info("gRPC health server listening", "port", port)
	return s.server.Serve(lis)
}

// Health returns the underlying health service
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}
