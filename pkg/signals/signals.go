//go:build unix

// Package signals runs the signal-dispatch loop shared by the engine and the
// plugin processes.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/reaper"
)

// Handler reacts to one delivered signal and returns true to end the loop.
type Handler func() bool

// Handlers maps the supported signals to reactions. Signals with a nil
// handler are not trapped and keep their default disposition.
type Handlers struct {
	Hangup    Handler
	Interrupt Handler
	Terminate Handler

	// Child runs on SIGCHLD and once right after SIGCHLD is trapped, to
	// collect children that exited before the handler was installed.
	Child Handler
}

// Handle dispatches signals until a handler returns true (nil is returned)
// or ctx is done (ctx.Err() is returned).
func Handle(ctx context.Context, handlers Handlers, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	dispatch := make(map[os.Signal]Handler)
	if handlers.Hangup != nil {
		dispatch[syscall.SIGHUP] = handlers.Hangup
	}
	if handlers.Interrupt != nil {
		dispatch[syscall.SIGINT] = handlers.Interrupt
	}
	if handlers.Terminate != nil {
		dispatch[syscall.SIGTERM] = handlers.Terminate
	}
	if handlers.Child != nil {
		dispatch[syscall.SIGCHLD] = handlers.Child
	}

	trapped := make([]os.Signal, 0, len(dispatch))
	for sig := range dispatch {
		trapped = append(trapped, sig)
	}

	// Notify with no signals would relay every signal.
	if len(trapped) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, trapped...)
	defer signal.Stop(sigs)

	if handlers.Child != nil && handlers.Child() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			handler := dispatch[sig]
			if handler == nil {
				continue
			}
			if sig != syscall.SIGCHLD {
				logger.Infof("Received signal: %v", sig)
			}
			if handler() {
				return nil
			}
		}
	}
}

// Ignore logs the signal and keeps the loop running.
func Ignore(logger logging.Logger, name string) Handler {
	return func() bool {
		logger.Infof("Ignoring %s", name)
		return false
	}
}

// Stop ends the loop.
func Stop(logger logging.Logger, name string) Handler {
	return func() bool {
		logger.Infof("Stopping on %s", name)
		return true
	}
}

var exit = os.Exit

// Exit terminates the process with code.
func Exit(code int) Handler {
	return func() bool {
		exit(code)
		return true
	}
}

// Reap sweeps every terminated child into r.
func Reap(r *reaper.Reaper, logger logging.Logger) Handler {
	return func() bool {
		if _, err := r.Reap(reaper.Any); err != nil {
			logger.Errorf("Failed to reap children: %v", err)
		}
		return false
	}
}
