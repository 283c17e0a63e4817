// Package plugin is the client side of the engine hand-off: read the
// rendezvous address from stdin and register with the engine.
package plugin

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/core-tools/hsu-engine/pkg/engine"
	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadAddress reads the engine address written to stdin by the supervisor.
// It returns once the supervisor closes the stream.
func ReadAddress(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewIOError("failed to read engine address", err)
	}
	address := strings.TrimSpace(string(data))
	if address == "" {
		return "", errors.NewValidationError("engine address is empty", nil)
	}
	return address, nil
}

// Register registers name with the engine at address. A name that is
// already registered counts as success, so a restarted plugin carries on.
func Register(ctx context.Context, address, name string, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	conn, err := transport.Dial(address, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	return register(ctx, engine.NewEngineClient(conn.GRPC()), name, logger)
}

func register(ctx context.Context, client engine.EngineClient, name string, logger logging.Logger) error {
	_, err := client.Register(ctx, &engine.Plugin{Name: name})
	if errors.IsAlreadyExists(err) {
		logger.Infof("Plugin %q was already registered", name)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Infof("Registered plugin %q", name)
	return nil
}

type RetryOptions struct {
	RetryAttempts int
	RetryInterval time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		RetryAttempts: 8,
		RetryInterval: 50 * time.Millisecond,
	}
}

// RetryRegister is Register with retries, doubling the interval, for as long
// as the engine is not accepting connections yet. Every attempt dials anew.
func RetryRegister(ctx context.Context, address, name string, options RetryOptions, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	retryInterval := options.RetryInterval
	for attempt := 1; ; attempt++ {
		err := Register(ctx, address, name, logger)
		if err == nil {
			return nil
		}
		if status.Code(err) != codes.Unavailable || attempt >= options.RetryAttempts {
			logger.Errorf("Failed to register plugin %q: %v", name, err)
			return err
		}

		logger.Infof("Engine not ready, retrying registration in %s", retryInterval)
		select {
		case <-ctx.Done():
			return errors.NewCancelledError("registration cancelled", ctx.Err())
		case <-time.After(retryInterval):
		}
		retryInterval *= 2
	}
}
