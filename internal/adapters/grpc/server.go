package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/ports"
)

var ErrServerStarted = errors.New("grpc server already started")

type ServerConfig struct {
	Address    string
	MaxMsgSize int
}

// Server exposes a routine registry as the Compute service.
type Server struct {
	logger   *slog.Logger
	routines *compute.Routines
	config   ServerConfig

	mu           sync.RWMutex
	server       *grpc.Server
	health       *health.Server
	listener     net.Listener
	started      bool
	shutdownChan chan struct{}
}

func NewServer(routines *compute.Routines, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger.With("component", "grpc-server"),
		routines: routines,
		config:   config,
	}
}

// Address returns the bound address once the server is listening.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Start listens on the configured address and serves until ctx is done or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.logger.Error("failed to listen", "error", err, "address", s.config.Address)
		return fmt.Errorf("grpc: listen on %s: %w", s.config.Address, err)
	}
	if err := s.StartOn(ctx, listener); err != nil {
		listener.Close()
		return err
	}
	return nil
}

// StartOn serves on an existing listener.
func (s *Server) StartOn(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrServerStarted
	}
	s.listener = listener

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(s.logger)),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor(s.logger)),
	}
	if s.config.MaxMsgSize > 0 {
		serverOpts = append(serverOpts,
			grpc.MaxRecvMsgSize(s.config.MaxMsgSize),
			grpc.MaxSendMsgSize(s.config.MaxMsgSize),
		)
	}

	s.server = grpc.NewServer(serverOpts...)
	s.server.RegisterService(&computeServiceDesc, s)

	s.health = health.NewServer()
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s.server, s.health)

	reflection.Register(s.server)

	s.started = true
	shutdown := make(chan struct{})
	s.shutdownChan = shutdown

	go func() {
		s.logger.Info("gRPC server starting", "address", listener.Addr().String(), "routines", s.routines.Names())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("gRPC server failed", "error", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-shutdown:
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	close(s.shutdownChan)

	s.logger.Info("stopping gRPC server")
	s.health.Shutdown()
	s.server.GracefulStop()
	s.started = false
	return nil
}

// Compute handles one call: notification frames are streamed as they happen,
// then one result or error frame.
func (s *Server) Compute(in *structpb.Struct, stream grpc.ServerStream) error {
	var req ports.ComputeRequest
	if err := fromStruct(in, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed compute request: %v", err)
	}
	if req.Routine == "" {
		return status.Error(codes.InvalidArgument, "routine is required")
	}
	if _, err := s.routines.Lookup(req.Routine); err != nil {
		return status.Error(codes.NotFound, err.Error())
	}

	var mu sync.Mutex
	return compute.Execute(stream.Context(), s.routines, req, func(f compute.Frame) error {
		msg, err := toStruct(f)
		if err != nil {
			return status.Errorf(codes.Internal, "encoding frame: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		return stream.SendMsg(msg)
	})
}

// Serving reports nil while the server accepts calls.
func (s *Server) Serving(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return errors.New("grpc: server not started")
	}
	return nil
}
