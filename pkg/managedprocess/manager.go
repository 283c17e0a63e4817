//go:build unix

package managedprocess

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/reaper"
)

const (
	DefaultTeardownDelay = 250 * time.Millisecond
	DefaultHandOffRetry  = 250 * time.Millisecond
)

type ManagerOptions struct {
	// TeardownDelay is the pause between signalling the pumps and closing
	// the child's handles.
	TeardownDelay time.Duration `yaml:"teardown_delay"`

	// HandOffRetry is the sleep between failed stdin writes.
	HandOffRetry time.Duration `yaml:"handoff_retry"`
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.TeardownDelay <= 0 {
		o.TeardownDelay = DefaultTeardownDelay
	}
	if o.HandOffRetry <= 0 {
		o.HandOffRetry = DefaultHandOffRetry
	}
	return o
}

// Manager owns the stdio handles, the process handle and the exit
// notification of exactly one child.
type Manager struct {
	options ManagerOptions
	logger  logging.Logger

	closing   chan struct{}
	closeOnce sync.Once
	pumps     sync.WaitGroup

	mutex   sync.Mutex
	handles []*handle
	process *os.Process
	exits   <-chan reaper.ExitStatus
}

type handle struct {
	once   sync.Once
	closer io.Closer
	err    error
}

func (h *handle) Close() error {
	h.once.Do(func() {
		h.err = h.closer.Close()
	})
	return h.err
}

func NewManager(options ManagerOptions, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Manager{
		options: options.withDefaults(),
		logger:  logger,
		closing: make(chan struct{}),
	}
}

// Attach hands the spawned child to the manager.
func (m *Manager) Attach(process *os.Process, exits <-chan reaper.ExitStatus) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.process = process
	m.exits = exits
}

func (m *Manager) track(closer io.Closer) *handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	h := &handle{closer: closer}
	m.handles = append(m.handles, h)
	return h
}

func (m *Manager) isClosing() bool {
	select {
	case <-m.closing:
		return true
	default:
		return false
	}
}

// HandOff writes payload to w in the background, then closes w so the child
// sees end of input. Failed writes are retried from the first unwritten byte
// until the manager is closed; bytes already accepted are never sent twice.
func (m *Manager) HandOff(w io.WriteCloser, payload []byte) {
	h := m.track(w)

	m.pumps.Add(1)
	go func() {
		defer m.pumps.Done()

		written := 0
		for written < len(payload) {
			n, err := w.Write(payload[written:])
			written += n
			if err == nil {
				continue
			}
			if m.isClosing() {
				m.logger.Debugf("Hand-off abandoned, written: %d/%d bytes", written, len(payload))
				return
			}

			m.logger.Warnf("Hand-off write failed, written: %d/%d bytes, error: %v", written, len(payload), err)
			select {
			case <-m.closing:
				return
			case <-time.After(m.options.HandOffRetry):
			}
		}

		if err := h.Close(); err != nil {
			m.logger.Debugf("Closing hand-off stream: %v", err)
		}
	}()
}

// DrainOutput logs every line read from r as "<label>: <line>" until end of
// stream. Lines that are not valid UTF-8 are logged quoted and skipped.
func (m *Manager) DrainOutput(r io.ReadCloser, label string) {
	m.track(r)

	m.pumps.Add(1)
	go func() {
		defer m.pumps.Done()

		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				m.logLine(label, line)
			}
			if err == nil {
				continue
			}
			if err != io.EOF && !m.isClosing() {
				m.logger.Warnf("%s: output read failed: %v", label, err)
			}
			return
		}
	}()
}

func (m *Manager) logLine(label, line string) {
	line = strings.TrimRight(line, "\r\n")
	if !utf8.ValidString(line) {
		m.logger.Warnf("%s: undecodable output line: %q", label, line)
		return
	}
	m.logger.Infof("%s: %s", label, line)
}

// Watch blocks until the exit of pid has been reaped. Notifications for any
// other pid are ignored.
func (m *Manager) Watch(pid int) reaper.ExitStatus {
	m.mutex.Lock()
	exits := m.exits
	m.mutex.Unlock()

	for status := range exits {
		if status.PID == pid {
			return status
		}
		m.logger.Debugf("Ignoring exit notification, want pid: %d, %s", pid, status)
	}

	// Only reachable if the channel was closed without a matching exit.
	return reaper.ExitStatus{PID: pid, Code: -1}
}

// Close stops the pumps, waits TeardownDelay, then closes every handle that
// is still open and releases the process handle. Safe to call repeatedly.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closing)
		time.Sleep(m.options.TeardownDelay)

		m.mutex.Lock()
		handles := m.handles
		process := m.process
		m.mutex.Unlock()

		for _, h := range handles {
			if err := h.Close(); err != nil {
				m.logger.Debugf("Closing child handle: %v", err)
			}
		}
		m.pumps.Wait()

		if process != nil {
			if err := process.Release(); err != nil {
				m.logger.Debugf("Releasing process handle, pid: %d, error: %v", process.Pid, err)
			}
		}
	})
}
