// Package grpc exposes the standard grpc.health.v1 service for the
// forecaster so orchestrators can probe it without HTTP.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ForecasterService is the service name reported alongside the overall ""
// status.
const ForecasterService = "mlpipeline.Forecaster"

// ReadinessFunc reports whether the forecaster can serve requests
type ReadinessFunc func() bool

// HealthServer represents the health gRPC server
type HealthServer struct {
	address  string
	interval time.Duration
	ready    ReadinessFunc
	logger   *logging.Logger

	mu         sync.Mutex
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	stopped    bool
}

// NewHealthServer creates a health server that re-evaluates ready every
// interval.
func NewHealthServer(address string, ready ReadinessFunc, logger *logging.Logger) *HealthServer {
	return &HealthServer{
		address:  address,
		interval: utils.GRPCHealthCheckInterval,
		ready:    ready,
		logger:   logger,
		health:   health.NewServer(),
	}
}

// Listen binds the listener. Start calls it when it has not run yet.
func (s *HealthServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *HealthServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled
func (s *HealthServer) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	listener := s.listener
	server := s.grpcServer
	s.mu.Unlock()

	s.refresh()
	s.logger.Info("gRPC health server starting", "address", listener.Addr().String())

	go func() {
		if err := server.Serve(listener); err != nil {
			s.logger.Error("gRPC server error", "error", err)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down gRPC health server")
			s.Stop()
			return nil
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh publishes the current readiness
func (s *HealthServer) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ready == nil || s.ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ForecasterService, status)
}

// Stop marks every service NOT_SERVING and stops the server gracefully
func (s *HealthServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.health.Shutdown()

	if s.grpcServer != nil {
		s.logger.Info("Stopping gRPC server")
		s.grpcServer.GracefulStop()
	} else if s.listener != nil {
		_ = s.listener.Close()
	}
}
