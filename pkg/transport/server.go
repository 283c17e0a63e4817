package transport

import (
	"context"
	"net"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"

	"google.golang.org/grpc"
)

const DefaultShutdownTimeout = 5 * time.Second

type ServerOptions struct {
	Transport       TransportConfig
	ShutdownTimeout time.Duration
	GRPC            []grpc.ServerOption
}

// Server is a gRPC server bound to one listener. Register services on
// Registrar() before calling Serve.
type Server struct {
	serverImpl      *grpc.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	logger          logging.Logger
}

func NewServer(options ServerOptions, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	listener, err := CreateListener(options.Transport)
	if err != nil {
		return nil, err
	}

	shutdownTimeout := options.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	logger.Infof("gRPC server listening at %s", GetListenerAddress(listener))

	return &Server{
		serverImpl:      grpc.NewServer(options.GRPC...),
		listener:        listener,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}, nil
}

func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.serverImpl
}

// Address returns the URL-style listen address
func (s *Server) Address() string {
	return GetListenerAddress(s.listener)
}

func (s *Server) String() string {
	return "grpc " + s.Address()
}

// Serve blocks until ctx is done or the server fails. On cancellation it
// stops gracefully and forces the stop after the shutdown timeout. A Server
// can be served only once.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Infof("Starting gRPC server at %s", s.Address())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.serverImpl.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			s.logger.Errorf("gRPC server serve failed at %s: %v", s.Address(), err)
			return errors.NewIOError("gRPC server failed", err).WithContext("address", s.Address())
		}
		return nil
	case <-ctx.Done():
	}

	s.shutdown()
	<-serveErr
	return ctx.Err()
}

func (s *Server) shutdown() {
	s.logger.Infof("Stopping gRPC server at %s...", s.Address())

	stopped := make(chan struct{})
	go func() {
		s.serverImpl.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Infof("gRPC server stopped gracefully")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warnf("gRPC server shutdown timed out, forcing stop")
		s.serverImpl.Stop()
		<-stopped
	}
}
