// Package health exposes the standard gRPC health service for orchestrators
// that probe over gRPC instead of HTTP.
package health

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "plantid"

// GRPCServer serves grpc.health.v1.Health.
type GRPCServer struct {
	server *grpc.Server
	health *grpchealth.Server
	logger *zap.Logger
}

// NewGRPCServer creates a server reporting NOT_SERVING until SetServing is called.
func NewGRPCServer(logger *zap.Logger) *GRPCServer {
	server := grpc.NewServer()
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	return &GRPCServer{server: server, health: hs, logger: logger.Named("grpc_health")}
}

// SetServing flips the reported status for both the overall and named service.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until the listener fails or Stop is called.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.logger.Info("gRPC health service listening", zap.String("addr", listener.Addr().String()))
	err := s.server.Serve(listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop marks every service NOT_SERVING and drains in-flight checks.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
