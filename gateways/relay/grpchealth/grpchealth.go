// Package grpchealth exposes the standard gRPC health service so that
// orchestrators can probe the relay without speaking HTTP.
package grpchealth

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "relay.TranscriptRelay"

type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func New(log *slog.Logger) *Server {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		srv:    srv,
		health: hs,
		log:    log,
	}
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc health service started", slog.String("address", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and drains in-flight checks.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
	s.log.Info("grpc health service stopped")
}
