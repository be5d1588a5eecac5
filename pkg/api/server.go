package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/lifecycle"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/records"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ComponentSource reports the state of orchestrated components
type ComponentSource interface {
	Status() map[string]lifecycle.ComponentStatus
}

// HealthSource reports the latest health-monitor round
type HealthSource interface {
	LastResults() map[string]health.Status
	LastRound() time.Time
}

// RecordSource lists the record table
type RecordSource interface {
	List() []records.Record
}

// Sources are the read models served by the API. Any of them may be nil.
type Sources struct {
	Components ComponentSource
	Health     HealthSource
	Records    RecordSource
	Version    string
}

// Server serves the HTTP status API and the gRPC health service
type Server struct {
	cfg     config.APIConfig
	sources Sources
	logger  zerolog.Logger
	handler http.Handler
	health  *grpchealth.Server

	mu       sync.Mutex
	http     *http.Server
	grpc     *grpc.Server
	httpAddr string
	grpcAddr string
}

// NewServer creates the API server
func NewServer(cfg config.APIConfig, sources Sources) *Server {
	s := &Server{
		cfg:     cfg,
		sources: sources,
		logger:  log.WithComponent("api"),
		health:  grpchealth.NewServer(),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds both listeners and serves until Stop
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return fmt.Errorf("API server already running on %s", s.httpAddr)
	}

	var lc net.ListenConfig
	httpLis, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	var grpcLis net.Listener
	if s.cfg.GRPCPort != 0 {
		grpcLis, err = lc.Listen(ctx, "tcp", s.cfg.GRPCAddr())
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddr(), err)
		}
	}

	s.http = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.httpAddr = httpLis.Addr().String()

	httpServer := s.http
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if grpcLis != nil {
		s.grpc = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpc, s.health)
		s.health.Resume()
		s.grpcAddr = grpcLis.Addr().String()

		grpcServer := s.grpc
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil {
				s.logger.Error().Err(err).Msg("gRPC server error")
			}
		}()
	}

	s.logger.Info().
		Str("http", s.httpAddr).
		Str("grpc", s.grpcAddr).
		Msg("API server started")
	return nil
}

// Stop drains both servers. When ctx expires first the gRPC server is
// stopped hard.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http == nil {
		return nil
	}

	s.logger.Info().Msg("stopping API server")

	s.health.Shutdown()
	err := s.http.Shutdown(ctx)

	if s.grpc != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpc.Stop()
			err = multierr.Append(err, ctx.Err())
		}
	}

	s.http = nil
	s.grpc = nil
	s.httpAddr = ""
	s.grpcAddr = ""

	if err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}
	s.logger.Info().Msg("API server stopped")
	return nil
}

// Addr returns the bound HTTP address, or "" when stopped
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr returns the bound gRPC address, or "" when stopped or when
// the gRPC health service is disabled
func (s *Server) GRPCAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

// HealthCheck probes the liveness endpoint over HTTP, then the gRPC health
// listener over TCP when it is enabled. A dead gRPC listener behind a
// working HTTP server is reported as degraded.
func (s *Server) HealthCheck(ctx context.Context) (health.Status, error) {
	addr := s.Addr()
	if addr == "" {
		return health.StatusUnhealthy, fmt.Errorf("API server not running")
	}

	result := health.NewHTTPChecker("http://" + addr + "/health").Check(ctx)
	if !result.Healthy() {
		return result.Status, errors.New(result.Message)
	}

	if grpcAddr := s.GRPCAddr(); grpcAddr != "" {
		probe := health.NewTCPChecker(grpcAddr).WithTimeout(2 * time.Second).Check(ctx)
		if !probe.Healthy() {
			return health.StatusDegraded, fmt.Errorf("gRPC health listener: %s", probe.Message)
		}
	}
	return result.Status, nil
}
