//go:build unix

package managedprocess

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/metrics"
	"github.com/core-tools/hsu-engine/pkg/processstatemachine"
	"github.com/core-tools/hsu-engine/pkg/reaper"
)

// ProcessDescription is what a Monitor supervises. Immutable once created.
type ProcessDescription struct {
	ExecutablePath string
	Address        string
}

type MonitorOptions struct {
	Manager ManagerOptions

	// NewPolicy builds the restart policy of one Monitor. Nil means AlwaysRestart.
	NewPolicy func() RestartPolicy
}

// Stats is a snapshot of one Monitor.
type Stats struct {
	ExecutablePath string
	State          processstatemachine.ProcessState
	PID            int
	Spawns         int
	Restarts       int
	LastSpawn      time.Time
	LastExit       *reaper.ExitStatus
}

// Monitor keeps one executable running: spawn, hand off the address, drain
// output, wait for the exit, tear down, ask the restart policy, repeat.
type Monitor struct {
	description  ProcessDescription
	reaper       *reaper.Reaper
	options      MonitorOptions
	policy       RestartPolicy
	stateMachine *processstatemachine.ProcessStateMachine
	logger       logging.Logger

	mutex sync.Mutex
	stats Stats
}

func NewMonitor(description ProcessDescription, r *reaper.Reaper, options MonitorOptions, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	var policy RestartPolicy = AlwaysRestart{}
	if options.NewPolicy != nil {
		policy = options.NewPolicy()
	}

	return &Monitor{
		description:  description,
		reaper:       r,
		options:      options,
		policy:       policy,
		stateMachine: processstatemachine.NewProcessStateMachine(description.ExecutablePath, logger),
		logger:       logger,
		stats:        Stats{ExecutablePath: description.ExecutablePath},
	}
}

func (m *Monitor) Description() ProcessDescription {
	return m.description
}

func (m *Monitor) Stats() Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stats := m.stats
	stats.State = m.stateMachine.GetCurrentState()
	if stats.LastExit != nil {
		lastExit := *stats.LastExit
		stats.LastExit = &lastExit
	}
	return stats
}

// Run supervises until the executable cannot be spawned, the restart policy
// declines, or ctx is done. ctx is only consulted between runs: a live child
// is never killed. A spawn failure is returned; the other exits return nil.
func (m *Monitor) Run(ctx context.Context) error {
	path := m.description.ExecutablePath
	label := filepath.Base(path)

	for {
		if ctx.Err() != nil {
			m.transition(processstatemachine.ProcessStateStopped, "cancelled", nil)
			return nil
		}

		m.transition(processstatemachine.ProcessStateSpawning, "spawn", nil)

		manager := NewManager(m.options.Manager, m.logger)
		cmd, stdin, stdout, exits, err := m.spawn()
		if err != nil {
			metrics.SpawnFailuresTotal.WithLabelValues(path).Inc()
			m.transition(processstatemachine.ProcessStateFailed, "spawn", err)
			m.logger.Errorf("Failed to spawn %s: %v", path, err)
			return err
		}
		pid := cmd.Process.Pid
		manager.Attach(cmd.Process, exits)
		startedAt := time.Now()

		metrics.SpawnsTotal.WithLabelValues(path).Inc()
		metrics.MonitorRunning.WithLabelValues(path).Set(1)
		m.recordSpawn(pid, startedAt)
		m.transition(processstatemachine.ProcessStateRunning, "spawn", nil)
		m.logger.Infof("Spawned %s, pid: %d", path, pid)

		manager.HandOff(stdin, []byte(m.description.Address))
		manager.DrainOutput(stdout, label)

		status := manager.Watch(pid)
		manager.Close()

		metrics.MonitorRunning.WithLabelValues(path).Set(0)
		metrics.ExitsTotal.WithLabelValues(path, exitKind(status)).Inc()
		stats := m.recordExit(status)
		m.transition(processstatemachine.ProcessStateExited, "reaped", nil)
		m.logger.Warnf("Supervised process %s terminated, %s", path, status)

		delay, restart := m.policy.Next(status, RestartStats{
			Spawns:   stats.Spawns,
			Restarts: stats.Restarts,
			Uptime:   time.Since(startedAt),
		})
		if !restart {
			m.transition(processstatemachine.ProcessStateStopped, "restart declined", nil)
			m.logger.Infof("Not restarting %s", path)
			return nil
		}

		if delay > 0 {
			m.logger.Infof("Restarting %s in %v", path, delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				m.transition(processstatemachine.ProcessStateStopped, "cancelled", nil)
				return nil
			case <-timer.C:
			}
		} else {
			m.logger.Infof("Restarting %s", path)
		}

		m.mutex.Lock()
		m.stats.Restarts++
		m.mutex.Unlock()
	}
}

// spawn starts "<path> --address <address>" under the reaper lock so the exit
// channel exists before the child can be collected. exec.Cmd.Wait is never
// called; the reaper owns the child's exit.
func (m *Monitor) spawn() (*exec.Cmd, *os.File, *os.File, <-chan reaper.ExitStatus, error) {
	path := m.description.ExecutablePath

	stdinReader, stdinWriter, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, nil, errors.NewIOError("failed to create stdin pipe", err).WithContext("executable", path)
	}
	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		stdinReader.Close()
		stdinWriter.Close()
		return nil, nil, nil, nil, errors.NewIOError("failed to create stdout pipe", err).WithContext("executable", path)
	}

	cmd := exec.Command(path, "--address", m.description.Address)
	cmd.Stdin = stdinReader
	cmd.Stdout = stdoutWriter
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = sysProcAttr()

	_, exits, err := m.reaper.Track(func() (int, error) {
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		return cmd.Process.Pid, nil
	})

	// The child holds its own copies now.
	stdinReader.Close()
	stdoutWriter.Close()

	if err != nil {
		stdinWriter.Close()
		stdoutReader.Close()
		return nil, nil, nil, nil, errors.NewProcessError("failed to spawn executable", err).
			WithContext("executable", path).
			WithContext("address", m.description.Address)
	}

	return cmd, stdinWriter, stdoutReader, exits, nil
}

func (m *Monitor) transition(to processstatemachine.ProcessState, operation string, err error) {
	if transitionErr := m.stateMachine.Transition(to, operation, err); transitionErr != nil {
		m.logger.Errorf("Monitor state error: %v", transitionErr)
	}
}

func (m *Monitor) recordSpawn(pid int, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stats.PID = pid
	m.stats.Spawns++
	m.stats.LastSpawn = at
}

func (m *Monitor) recordExit(status reaper.ExitStatus) Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stats.PID = 0
	m.stats.LastExit = &status
	return m.stats
}

func exitKind(status reaper.ExitStatus) string {
	if status.Signaled {
		return "signaled"
	}
	return "exited"
}
