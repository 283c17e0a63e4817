//go:build unix

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/core-tools/hsu-engine/pkg/logging"
	zaplogging "github.com/core-tools/hsu-engine/pkg/logging/zap"
	"github.com/core-tools/hsu-engine/pkg/plugin"
	"github.com/core-tools/hsu-engine/pkg/runtime"
	"github.com/core-tools/hsu-engine/pkg/signals"
	"github.com/core-tools/hsu-engine/pkg/transport"

	flags "github.com/jessevdk/go-flags"
)

const name = "runtime"

type flagOptions struct {
	Address    string `long:"address" description:"Engine rendezvous address, also handed over on stdin"`
	Socket     string `long:"socket" description:"Unix socket to serve on" default:"/var/run/cosi/runtime.sock"`
	TCPAddress string `long:"tcp-address" description:"TCP address to serve on" default:"127.0.0.1:50000"`
	LogLevel   string `long:"log-level" description:"Log level (debug, info, warn, error)" default:"info"`
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
	logger := zapLogger.Named("[runtime] ")

	if err := run(opts, logger); err != nil {
		logger.Errorf("Runtime failed: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}
}

func run(opts flagOptions, logger logging.Logger) error {
	address, err := plugin.ReadAddress(os.Stdin)
	if err != nil {
		return err
	}
	if opts.Address != "" && opts.Address != address {
		logger.Warnf("Handshake address %s differs from --address %s", address, opts.Address)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := plugin.RetryRegister(ctx, address, name, plugin.DefaultRetryOptions(), logger); err != nil {
		return err
	}

	service := runtime.NewService(logger)
	state := runtime.NewState(logger)

	var servers []*transport.Server
	for _, listen := range []transport.TransportConfig{
		transport.UDSTransportConfig(opts.Socket),
		{TransportType: transport.TransportTCP, TCPAddress: opts.TCPAddress},
	} {
		server, err := runtime.NewServer(service, state, transport.ServerOptions{Transport: listen}, logger)
		if err != nil {
			return err
		}
		servers = append(servers, server)
	}

	failed := make(chan error, len(servers))
	for _, server := range servers {
		go func(server *transport.Server) {
			if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
				failed <- err
			}
		}(server)
	}

	signalErr := make(chan error, 1)
	go func() {
		signalErr <- signals.Handle(ctx, signals.Handlers{
			Hangup:    signals.Exit(0),
			Interrupt: signals.Exit(0),
			Terminate: signals.Exit(0),
		}, logger)
	}()

	select {
	case err := <-failed:
		return err
	case err := <-signalErr:
		return err
	}
}
