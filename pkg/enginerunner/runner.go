//go:build unix

// Package enginerunner assembles the engine: the reaper, the plugin registry
// on the rendezvous socket, the signal loop and the loaders for the runtime,
// generators and plugins.
package enginerunner

import (
	"context"
	stderrors "errors"
	"runtime"
	"time"

	"github.com/core-tools/hsu-engine/pkg/engine"
	"github.com/core-tools/hsu-engine/pkg/engineconfig"
	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/loader"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/managedprocess"
	"github.com/core-tools/hsu-engine/pkg/reaper"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"github.com/thejerf/suture/v4"
)

type Runner struct {
	config *engineconfig.EngineConfig
	logger logging.Logger

	reaper   *reaper.Reaper
	registry *engine.Service
	server   *transport.Server

	runtime    *loader.Loader
	generators *loader.Loader
	plugins    *loader.Loader
}

// New validates config and binds the rendezvous socket. Nothing is spawned
// until Run.
func New(config *engineconfig.EngineConfig, logger logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if err := engineconfig.ValidateConfig(config); err != nil {
		return nil, err
	}

	listen, err := transport.ParseAddress(config.Engine.Socket)
	if err != nil {
		return nil, errors.NewValidationError("invalid engine socket", err).WithContext("socket", config.Engine.Socket)
	}

	registry := engine.NewService(logger)
	server, err := engine.NewServer(registry, transport.ServerOptions{
		Transport:       listen,
		ShutdownTimeout: config.Engine.ShutdownTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	r := reaper.New(logger)
	loaderOptions := loader.Options{
		Address:  config.Engine.Socket,
		Platform: config.Platform(),
		Monitor:  config.MonitorOptions(),
	}

	return &Runner{
		config:     config,
		logger:     logger,
		reaper:     r,
		registry:   registry,
		server:     server,
		runtime:    loader.New("runtime", r, loaderOptions, logger),
		generators: loader.New("generators", r, loaderOptions, logger),
		plugins:    loader.New("plugins", r, loaderOptions, logger),
	}, nil
}

// Address is where the registry listens.
func (r *Runner) Address() string {
	return r.server.Address()
}

func (r *Runner) Registry() *engine.Service {
	return r.registry
}

// Run serves the registry and supervises every discovered executable until
// ctx is done, a stopping signal arrives or the registry server fails.
// Children that are still running are left alone; they get SIGTERM when
// the engine exits.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Infof("Engine starting, platform: OS=%s, Arch=%s, Go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.Version())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := newFailures()
	tree := suture.New("hsu-engine", suture.Spec{
		EventHook: func(event suture.Event) {
			r.logger.Warnf("Supervisor event: %s", event)
		},
		Timeout: r.config.Engine.ShutdownTimeout + time.Second,
	})
	tree.Add(&grpcService{server: r.server, failures: failures})
	tree.Add(newSignalService(r.reaper, r.config.Engine.ExitOnSignal, r.logger))
	if r.config.Engine.MetricsAddress != "" {
		tree.Add(newMetricsService(r.config.Engine.MetricsAddress, r.config.Engine.ShutdownTimeout, r.logger))
	}

	done := tree.ServeBackground(ctx)
	r.load(ctx)

	err := <-done
	cancel()

	if failure := failures.first(); failure != nil {
		return failure
	}
	if err == nil || stderrors.Is(err, suture.ErrTerminateSupervisorTree) ||
		stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		r.logger.Infof("Engine stopped")
		return nil
	}
	return err
}

// load starts the runtime, then generators, then plugins. A failure of one
// kind is logged and the others are still loaded.
func (r *Runner) load(ctx context.Context) {
	if path := r.config.Runtime.Executable; path != "" {
		if err := r.runtime.LoadExecutable(ctx, path); err != nil {
			r.logger.Errorf("Failed to load runtime: %v", err)
		} else {
			r.logger.Infof("Loaded runtime")
		}
	}

	if _, err := r.generators.Load(ctx, r.config.Discovery.GeneratorsDir); err != nil {
		r.logger.Errorf("Failed to load generators: %v", err)
	}
	if _, err := r.plugins.Load(ctx, r.config.Discovery.PluginsDir); err != nil {
		r.logger.Errorf("Failed to load plugins: %v", err)
	}
}

// Summary is a point-in-time view of the engine.
type Summary struct {
	Registered []engine.Registration  `json:"registered"`
	Runtime    []managedprocess.Stats `json:"runtime"`
	Generators []managedprocess.Stats `json:"generators"`
	Plugins    []managedprocess.Stats `json:"plugins"`
}

func (r *Runner) Summary() Summary {
	return Summary{
		Registered: r.registry.Plugins(),
		Runtime:    r.runtime.Stats(),
		Generators: r.generators.Stats(),
		Plugins:    r.plugins.Stats(),
	}
}
