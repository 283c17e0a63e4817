//go:build unix

// Package reaper collects terminated children with non-blocking wait calls
// and delivers each exit to the one waiter registered for that pid.
//
// POSIX only promises that SIGCHLD means "some child changed state", and
// several exits may coalesce into one signal. Callers therefore run
// Reap(Any) from the SIGCHLD hook and once more right after trapping the
// signal. Nothing else in the process may call wait on children that were
// started through Track, including exec.Cmd.Wait.
package reaper

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/metrics"

	"golang.org/x/sys/unix"
)

// Any makes Reap collect every terminated child instead of a specific pid.
const Any = -1

// ExitStatus describes one reaped child.
type ExitStatus struct {
	PID      int
	Code     int // -1 when killed by a signal
	Signaled bool
	Signal   syscall.Signal
}

// Success reports a zero exit code.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("pid %d killed by %s", s.PID, s.Signal)
	}
	return fmt.Sprintf("pid %d exited with code %d", s.PID, s.Code)
}

type waitFunc func(pid int, status *unix.WaitStatus, options int, rusage *unix.Rusage) (int, error)

// Reaper is process-wide. Create one at startup and share the pointer.
type Reaper struct {
	// mutex serializes spawns against wait+publish so a waiter is always
	// registered before its child can be collected, and a recycled pid can
	// never receive the status of its predecessor.
	mutex   sync.Mutex
	waiters map[int]chan ExitStatus
	wait4   waitFunc
	logger  logging.Logger
}

func New(logger logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Reaper{
		waiters: make(map[int]chan ExitStatus),
		wait4:   unix.Wait4,
		logger:  logger,
	}
}

// Track runs start, which must spawn exactly one child and return its pid,
// and registers a dedicated channel for that pid before any sweep can
// collect it. The channel receives exactly one ExitStatus.
func (r *Reaper) Track(start func() (int, error)) (int, <-chan ExitStatus, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	pid, err := start()
	if err != nil {
		return 0, nil, err
	}

	ch := make(chan ExitStatus, 1)
	r.waiters[pid] = ch

	r.logger.Debugf("Tracking child, pid: %d", pid)
	return pid, ch, nil
}

// Untrack drops the waiter for pid. A later exit of that pid is reported as
// unclaimed.
func (r *Reaper) Untrack(pid int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.waiters, pid)
}

// Tracked returns the number of registered waiters.
func (r *Reaper) Tracked() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.waiters)
}

// Reap collects terminated children without blocking.
//
// With target == Any it keeps collecting until no more children have changed
// state or none are left. With a specific pid it makes at most one attempt.
// EINTR is retried and ECHILD ends the sweep normally. Any other wait error
// is returned together with the statuses collected before it.
func (r *Reaper) Reap(target int) ([]ExitStatus, error) {
	var reaped []ExitStatus

	for {
		status, done, err := r.reapOne(target)
		if err != nil {
			metrics.ReapErrorsTotal.Inc()
			return reaped, errors.NewProcessError("wait failed", err).WithContext("target", target)
		}
		if status != nil {
			reaped = append(reaped, *status)
		}
		if done || target != Any {
			return reaped, nil
		}
	}
}

// reapOne performs one wait call and publishes its result under the lock.
func (r *Reaper) reapOne(target int) (*ExitStatus, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var ws unix.WaitStatus
	var pid int
	var err error
	for {
		pid, err = r.wait4(target, &ws, unix.WNOHANG, nil)
		if err != unix.EINTR {
			break
		}
	}

	switch {
	case err == unix.ECHILD:
		return nil, true, nil
	case err != nil:
		return nil, true, err
	case pid <= 0:
		// WNOHANG and nothing has changed state yet
		return nil, true, nil
	}

	if !ws.Exited() && !ws.Signaled() {
		// Stopped or continued children are not reported without WUNTRACED;
		// treat anything else as the end of this sweep.
		return nil, true, nil
	}

	status := ExitStatus{PID: pid, Code: ws.ExitStatus()}
	if ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal()
		status.Code = -1
	}

	r.publishUnsafe(status)
	return &status, false, nil
}

func (r *Reaper) publishUnsafe(status ExitStatus) {
	metrics.ReapedTotal.Inc()

	ch, exists := r.waiters[status.PID]
	if !exists {
		metrics.UnclaimedExitsTotal.Inc()
		r.logger.Debugf("Reaped unclaimed child, %s", status)
		return
	}

	delete(r.waiters, status.PID)
	ch <- status
	r.logger.Debugf("Reaped child, %s", status)
}
