//go:build linux

package reaper

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type waitResult struct {
	pid    int
	status unix.WaitStatus
	err    error
}

// scriptedWait replays results in order and reports ECHILD once exhausted.
func scriptedWait(t *testing.T, results ...waitResult) (waitFunc, *[]int) {
	t.Helper()
	var targets []int
	return func(pid int, status *unix.WaitStatus, options int, rusage *unix.Rusage) (int, error) {
		assert.Equal(t, unix.WNOHANG, options)
		targets = append(targets, pid)
		if len(results) == 0 {
			return -1, unix.ECHILD
		}
		next := results[0]
		results = results[1:]
		*status = next.status
		return next.pid, next.err
	}, &targets
}

func exitedWith(code int) unix.WaitStatus {
	return unix.WaitStatus(uint32(code) << 8)
}

func killedBy(sig syscall.Signal) unix.WaitStatus {
	return unix.WaitStatus(uint32(sig))
}

func isZombie(t *testing.T, pid int) bool {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return false
	}
	stat, err := proc.Stat()
	if err != nil {
		return false
	}
	return stat.State == "Z"
}

func isGone(pid int) bool {
	_, err := procfs.NewProc(pid)
	return err != nil
}

func TestReapAnyCollectsEveryKilledChildExactlyOnce(t *testing.T) {
	const children = 50
	r := New(nil)

	pids := make(map[int]bool, children)
	for i := 0; i < children; i++ {
		cmd := exec.Command("sleep", "60")
		require.NoError(t, cmd.Start())
		pids[cmd.Process.Pid] = true
	}

	for pid := range pids {
		require.NoError(t, unix.Kill(pid, unix.SIGKILL))
	}

	require.Eventually(t, func() bool {
		for pid := range pids {
			if !isZombie(t, pid) {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond, "killed children never became zombies")

	seen := make(map[int]int)
	for sweep := 0; sweep < 10 && len(seen) < children; sweep++ {
		statuses, err := r.Reap(Any)
		require.NoError(t, err)
		for _, status := range statuses {
			seen[status.PID]++
			assert.True(t, status.Signaled)
			assert.Equal(t, syscall.SIGKILL, status.Signal)
			assert.Equal(t, -1, status.Code)
		}
	}

	require.Len(t, seen, children)
	for pid, count := range seen {
		assert.True(t, pids[pid], "reaped unknown pid %d", pid)
		assert.Equal(t, 1, count, "pid %d reaped more than once", pid)
		assert.True(t, isGone(pid), "pid %d still present after reaping", pid)
	}

	statuses, err := r.Reap(Any)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestTrackDeliversExitToDedicatedChannel(t *testing.T) {
	r := New(nil)

	pid, exits, err := r.Track(func() (int, error) {
		cmd := exec.Command("/bin/sh", "-c", "exit 3")
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		return cmd.Process.Pid, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Tracked())

	require.Eventually(t, func() bool {
		_, err := r.Reap(pid)
		require.NoError(t, err)
		return len(exits) == 1
	}, 5*time.Second, 10*time.Millisecond)

	status := <-exits
	assert.Equal(t, pid, status.PID)
	assert.Equal(t, 3, status.Code)
	assert.False(t, status.Success())
	assert.Equal(t, 0, r.Tracked())
}

func TestTrackPropagatesStartError(t *testing.T) {
	r := New(nil)

	_, exits, err := r.Track(func() (int, error) {
		return 0, errors.NewProcessError("spawn failed", nil)
	})
	assert.True(t, errors.IsProcessError(err))
	assert.Nil(t, exits)
	assert.Equal(t, 0, r.Tracked())
}

func TestReapRetriesInterruptedWait(t *testing.T) {
	r := New(nil)
	r.wait4, _ = scriptedWait(t,
		waitResult{pid: -1, err: unix.EINTR},
		waitResult{pid: -1, err: unix.EINTR},
		waitResult{pid: 100, status: exitedWith(0)},
		waitResult{pid: 101, status: killedBy(syscall.SIGTERM)},
		waitResult{pid: 0},
	)

	statuses, err := r.Reap(Any)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Success())
	assert.Equal(t, 101, statuses[1].PID)
	assert.Equal(t, syscall.SIGTERM, statuses[1].Signal)
	assert.Equal(t, "pid 101 killed by terminated", statuses[1].String())
}

func TestReapReturnsUnexpectedErrorWithCollectedStatuses(t *testing.T) {
	r := New(nil)
	r.wait4, _ = scriptedWait(t,
		waitResult{pid: 200, status: exitedWith(1)},
		waitResult{pid: -1, err: unix.EINVAL},
	)

	statuses, err := r.Reap(Any)
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
	assert.ErrorIs(t, err, unix.EINVAL)
	require.Len(t, statuses, 1)
	assert.Equal(t, "pid 200 exited with code 1", statuses[0].String())
}

func TestReapSpecificPidMakesSingleAttempt(t *testing.T) {
	r := New(nil)
	wait, targets := scriptedWait(t,
		waitResult{pid: 300, status: exitedWith(0)},
		waitResult{pid: 301, status: exitedWith(0)},
	)
	r.wait4 = wait

	statuses, err := r.Reap(300)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, []int{300}, *targets)

	statuses, err = r.Reap(999)
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
	assert.Equal(t, []int{300, 999}, *targets)
}

func TestUntrackedExitIsNotDeliveredToOtherWaiters(t *testing.T) {
	r := New(nil)
	r.wait4, _ = scriptedWait(t,
		waitResult{pid: 400, status: exitedWith(0)},
	)

	_, exits, err := r.Track(func() (int, error) { return 401, nil })
	require.NoError(t, err)
	_, dropped, err := r.Track(func() (int, error) { return 400, nil })
	require.NoError(t, err)
	r.Untrack(400)

	statuses, err := r.Reap(Any)
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
	assert.Empty(t, exits)
	assert.Empty(t, dropped)
	assert.Equal(t, 1, r.Tracked())
}
