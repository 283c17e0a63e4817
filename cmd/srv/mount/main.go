//go:build unix

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/core-tools/hsu-engine/pkg/api"
	"github.com/core-tools/hsu-engine/pkg/logging"
	zaplogging "github.com/core-tools/hsu-engine/pkg/logging/zap"
	"github.com/core-tools/hsu-engine/pkg/plugin"
	"github.com/core-tools/hsu-engine/pkg/runtime"
	"github.com/core-tools/hsu-engine/pkg/signals"
	"github.com/core-tools/hsu-engine/pkg/transport"

	flags "github.com/jessevdk/go-flags"
)

const (
	name      = "mount"
	kind      = "Mount"
	namespace = "system"
)

type flagOptions struct {
	Address  string `long:"address" description:"Engine rendezvous address, also handed over on stdin"`
	Runtime  string `long:"runtime" description:"Runtime address" default:"127.0.0.1:50000"`
	LogLevel string `long:"log-level" description:"Log level (debug, info, warn, error)" default:"info"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := zaplogging.New(opts.LogLevel, false)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Named("[mount] ")

	if err := run(opts, logger); err != nil {
		logger.Errorf("Plugin failed: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}
}

func run(opts flagOptions, logger logging.Logger) error {
	address, err := plugin.ReadAddress(os.Stdin)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := plugin.RetryRegister(ctx, address, name, plugin.DefaultRetryOptions(), logger); err != nil {
		return err
	}

	conn, err := transport.Dial(opts.Runtime, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	controllers := runtime.NewControllerRuntimeClient(conn.GRPC())

	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Second)
	registered, err := controllers.RegisterController(callCtx, &runtime.RegisterControllerRequest{
		ControllerName: name,
		Inputs: []runtime.ControllerInput{{
			Kind:      runtime.ControllerInputStrong,
			Namespace: namespace,
			Type:      kind,
		}},
		Outputs: []runtime.ControllerOutput{{
			Type: kind + "Status",
			Kind: runtime.ControllerOutputShared,
		}},
	})
	callCancel()
	if err != nil {
		return err
	}
	logger.Infof("Registered controller, token: %s", registered.ControllerToken)

	go reconcile(ctx, runtime.NewControllerAdapterClient(conn.GRPC()), registered.ControllerToken, logger)

	if _, err := controllers.Start(ctx, &runtime.StartRequest{}); err != nil {
		logger.Warnf("Runtime did not start the controller: %v", err)
	}

	return signals.Handle(ctx, signals.Handlers{
		Hangup:    signals.Exit(0),
		Interrupt: signals.Exit(0),
		Terminate: signals.Exit(0),
	}, logger)
}

// reconcile lists the Mount resources on every reconcile event.
func reconcile(ctx context.Context, adapter *runtime.ControllerAdapterClient, token string, logger logging.Logger) {
	events, err := adapter.ReconcileEvents(ctx, &runtime.ReconcileEventsRequest{ControllerToken: token})
	if err != nil {
		logger.Warnf("Reconcile events unavailable: %v", err)
		return
	}

	for {
		if _, err = events.Recv(); err != nil {
			break
		}

		stream, err := adapter.List(ctx, &runtime.RuntimeListRequest{
			ControllerToken: token,
			Namespace:       namespace,
			Type:            kind,
		})
		if err != nil {
			logger.Warnf("Failed to list mounts: %v", err)
			continue
		}
		responses, err := api.Collect(stream)
		if err != nil {
			logger.Warnf("Failed to list mounts: %v", err)
		}
		for _, response := range responses {
			resource := response.Resource
			if resource == nil || resource.Metadata == nil || resource.Metadata.Type != kind {
				continue
			}
			if resource.Spec != nil {
				logger.Infof("Mount %s: %s", resource.Metadata.ID, resource.Spec.YAMLSpec)
			}
		}
	}
	if err != io.EOF {
		logger.Warnf("Reconcile stream ended: %v", err)
	}
}
