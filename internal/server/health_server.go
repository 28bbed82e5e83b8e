package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the standard grpc.health.v1 service. The node reports
// SERVING only after its startup volume check has passed.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	addr       string
	logger     *zap.Logger
}

// HealthServerConfig holds configuration for the health server
type HealthServerConfig struct {
	Host string
	Port int
}

// NewHealthServer creates a new gRPC health server in NOT_SERVING state
func NewHealthServer(cfg *HealthServerConfig, logger *zap.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &HealthServer{
		grpcServer: grpcServer,
		health:     hs,
		addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		logger:     logger,
	}
}

// Start starts serving health checks
func (s *HealthServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("Starting health server", zap.String("addr", s.addr))

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("Health server failed", zap.Error(err))
		}
	}()

	return nil
}

// SetServing flips the node's serving status
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Stop gracefully stops the health server
func (s *HealthServer) Stop() {
	s.grpcServer.GracefulStop()
}
