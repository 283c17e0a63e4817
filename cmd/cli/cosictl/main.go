package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-engine/pkg/logging"
	zaplogging "github.com/core-tools/hsu-engine/pkg/logging/zap"
	"github.com/core-tools/hsu-engine/pkg/resource"
	"github.com/core-tools/hsu-engine/pkg/runtime"
	"github.com/core-tools/hsu-engine/pkg/transport"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Address  string        `long:"address" short:"a" description:"State service address" default:"127.0.0.1:50000"`
	Timeout  time.Duration `long:"timeout" description:"Timeout for the whole command" default:"30s"`
	LogLevel string        `long:"log-level" description:"Log level (debug, info, warn, error)" default:"info"`
}

var opts globalOptions

type manifestCommand struct {
	Filename string `short:"f" long:"filename" description:"YAML manifest file" required:"true"`
}

type createCommand struct {
	manifestCommand
}

func (c *createCommand) Execute([]string) error {
	return withState(c.Filename, "Applying", resource.CreateAll)
}

type deleteCommand struct {
	manifestCommand
}

func (c *deleteCommand) Execute([]string) error {
	return withState(c.Filename, "Deleting", resource.DestroyAll)
}

type applyFunc func(context.Context, resource.StateClient, []resource.Instance, logging.Logger) error

func withState(filename, verb string, apply applyFunc) error {
	zapLogger, err := zaplogging.New(opts.LogLevel, true)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	logger := zapLogger.Named("")

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	instances, err := resource.DecodeManifests(file)
	if err != nil {
		return err
	}

	conn, err := transport.Dial(opts.Address, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	logger.Infof("%s %s", verb, filename)
	return apply(ctx, runtime.NewStateClient(conn.GRPC()), instances, logger)
}

func main() {
	var parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.AddCommand("create", "Create resources", "Create every resource in a YAML manifest", &createCommand{})
	parser.AddCommand("delete", "Delete resources", "Delete every resource in a YAML manifest", &deleteCommand{})

	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
