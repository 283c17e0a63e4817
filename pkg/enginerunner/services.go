//go:build unix

package enginerunner

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/reaper"
	"github.com/core-tools/hsu-engine/pkg/signals"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
)

// failures collects the first error that ended the service tree.
type failures struct {
	errs chan error
}

func newFailures() *failures {
	return &failures{errs: make(chan error, 1)}
}

func (f *failures) record(err error) {
	select {
	case f.errs <- err:
	default:
	}
}

func (f *failures) first() error {
	select {
	case err := <-f.errs:
		return err
	default:
		return nil
	}
}

// grpcService runs a transport.Server under suture. A grpc.Server cannot be
// served twice, so any failure tears the tree down instead of restarting.
type grpcService struct {
	server   *transport.Server
	failures *failures
}

func (s *grpcService) Serve(ctx context.Context) error {
	err := s.server.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.failures.record(err)
	}
	return suture.ErrTerminateSupervisorTree
}

func (s *grpcService) String() string {
	return s.server.String()
}

// signalService owns the signal loop. A handler that stops the loop stops
// the whole engine.
type signalService struct {
	handlers signals.Handlers
	logger   logging.Logger
}

func (s *signalService) Serve(ctx context.Context) error {
	if err := signals.Handle(ctx, s.handlers, s.logger); err != nil {
		return err
	}
	return suture.ErrTerminateSupervisorTree
}

func (s *signalService) String() string {
	return "signal loop"
}

// newSignalService wires SIGCHLD to r. HUP is always ignored; INT and TERM
// are ignored unless exitOnSignal is set.
func newSignalService(r *reaper.Reaper, exitOnSignal bool, logger logging.Logger) *signalService {
	handlers := signals.Handlers{
		Hangup:    signals.Ignore(logger, "SIGHUP"),
		Interrupt: signals.Ignore(logger, "SIGINT"),
		Terminate: signals.Ignore(logger, "SIGTERM"),
		Child:     signals.Reap(r, logger),
	}
	if exitOnSignal {
		handlers.Interrupt = signals.Stop(logger, "SIGINT")
		handlers.Terminate = signals.Stop(logger, "SIGTERM")
	}
	return &signalService{handlers: handlers, logger: logger}
}

// metricsService exposes the Prometheus registry over HTTP.
type metricsService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          logging.Logger
}

func newMetricsService(address string, shutdownTimeout time.Duration, logger logging.Logger) *metricsService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &metricsService{
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

func (s *metricsService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Serving metrics at http://%s/metrics", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Errorf("Metrics server failed: %v", err)
			// http.Server cannot be restarted after ListenAndServe returned
			return suture.ErrDoNotRestart
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnf("Metrics server shutdown failed: %v", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *metricsService) String() string {
	return "metrics " + s.server.Addr
}
