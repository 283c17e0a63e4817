//go:build unix

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/core-tools/hsu-engine/pkg/engineconfig"
	"github.com/core-tools/hsu-engine/pkg/enginerunner"
	zaplogging "github.com/core-tools/hsu-engine/pkg/logging/zap"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config         string `long:"config" short:"c" description:"Configuration file path (YAML)"`
	Socket         string `long:"socket" description:"Rendezvous socket handed to every supervised executable"`
	Plugins        string `long:"plugins" description:"Plugins directory"`
	Generators     string `long:"generators" description:"Generators directory"`
	Runtime        string `long:"runtime" description:"Runtime executable path"`
	LogLevel       string `long:"log-level" description:"Log level (debug, info, warn, error)"`
	Development    bool   `long:"development" description:"Human readable console logs"`
	MetricsAddress string `long:"metrics-address" description:"Serve Prometheus metrics on this address"`
	ExitOnSignal   bool   `long:"exit-on-signal" description:"Stop on SIGINT and SIGTERM instead of ignoring them"`
}

func (opts *flagOptions) apply(config *engineconfig.EngineConfig) {
	if opts.Socket != "" {
		config.Engine.Socket = opts.Socket
	}
	if opts.Plugins != "" {
		config.Discovery.PluginsDir = opts.Plugins
	}
	if opts.Generators != "" {
		config.Discovery.GeneratorsDir = opts.Generators
	}
	if opts.Runtime != "" {
		config.Runtime.Executable = opts.Runtime
	}
	if opts.LogLevel != "" {
		config.Engine.LogLevel = opts.LogLevel
	}
	if opts.Development {
		config.Engine.Development = true
	}
	if opts.MetricsAddress != "" {
		config.Engine.MetricsAddress = opts.MetricsAddress
	}
	if opts.ExitOnSignal {
		config.Engine.ExitOnSignal = true
	}
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

	config := engineconfig.DefaultConfig()
	if opts.Config != "" {
		config, err = engineconfig.LoadConfigFromFile(opts.Config)
		if err != nil {
			fmt.Printf("Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	opts.apply(config)

	zapLogger, err := zaplogging.New(config.Engine.LogLevel, config.Engine.Development)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := zapLogger.Named("[engine] ")

	runner, err := enginerunner.New(config, logger)
	if err != nil {
		logger.Errorf("Failed to start engine: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}

	logger.Infof("Listening on %s", runner.Address())
	if err := runner.Run(context.Background()); err != nil {
		logger.Errorf("Engine failed: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}
}
