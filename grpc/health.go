// Package grpc exposes the bot's readiness over the standard gRPC health protocol.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the server-wide "" entry.
const ServiceName = "forumkeeper.Lifecycle"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	srv     *grpc.Server
	health  *health.Server
	log     *zap.Logger
	serving atomic.Bool
}

// NewHealthServer creates a server that reports NOT_SERVING until SetServing(true).
func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthServer{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
		log:    logger,
	}
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// SetServing flips both the server-wide and the lifecycle status.
func (h *HealthServer) SetServing(ok bool) {
	if h.serving.Swap(ok) == ok {
		return
	}
	if ok {
		h.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	h.log.Info("health status changed", zap.Bool("serving", ok))
}

// Serving reports the last status set.
func (h *HealthServer) Serving() bool { return h.serving.Load() }

func (h *HealthServer) setStatus(s healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", s)
	h.health.SetServingStatus(ServiceName, s)
}

// ListenAndServe serves on addr until ctx is done.
func (h *HealthServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return h.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.log.Info("health server listening", zap.String("addr", lis.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- h.srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
