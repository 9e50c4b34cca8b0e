package grpc_control

import (
	"context"
	"fmt"
	"net"
	"sync"

	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/state"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry that follows the bot stream.
const ServiceName = "botmirror.Mirror"

// -----------------------------------------------------------------------------
// HealthService reports the mirror over the standard gRPC health protocol:
// SERVING while the stream is CONNECTED, NOT_SERVING otherwise. The overall
// server entry ("") stays SERVING while the process runs.
// -----------------------------------------------------------------------------

type HealthService struct {
	Config *models.MConfig
	Logger *logger.Logger
	store  *state.Store
	health *health.Server
	server *grpc.Server

	mu      sync.Mutex
	serving bool
	stopped bool
}

// -----------------------------------------------------------------------------

func NewHealthService(cfg *models.MConfig, store *state.Store, log *logger.Logger) *HealthService {
	if log == nil {
		log = logger.NewNop("HealthService")
	}
	h := &HealthService{
		Config: cfg,
		Logger: log,
		store:  store,
		health: health.NewServer(),
		server: grpc.NewServer(),
	}
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(h.server, h.health)

	store.Subscribe(h)
	h.OnStateChanged(store.Version())
	return h
}

// -----------------------------------------------------------------------------

// OnStateChanged flips the mirror entry on connection changes only.
func (h *HealthService) OnStateChanged(uint64) {
	serving := h.store.Connection() == models.StateConnected

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || serving == h.serving {
		return
	}
	h.serving = serving

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
	h.Logger.Debug("Health %s -> %s", ServiceName, status)
}

// -----------------------------------------------------------------------------

// Start listens on grpc_port and serves until Stop.
func (h *HealthService) Start() error {
	addr := fmt.Sprintf("%s:%d", h.Config.Host, h.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	h.Logger.Info("Starting gRPC health server on %s", addr)
	return h.Serve(lis)
}

// -----------------------------------------------------------------------------

// Serve blocks on lis until Stop.
func (h *HealthService) Serve(lis net.Listener) error {
	if err := h.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop marks every entry NOT_SERVING and drains open calls until ctx ends.
func (h *HealthService) Stop(ctx context.Context) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	h.health.Shutdown()
	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.server.Stop()
	}
}
