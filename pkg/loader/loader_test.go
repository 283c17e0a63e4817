//go:build unix

package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/managedprocess"
	"github.com/core-tools/hsu-engine/pkg/processstatemachine"
	"github.com/core-tools/hsu-engine/pkg/reaper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPlatform = Platform{OS: "linux", Arch: "x86_64"}

func touch(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestArch(t *testing.T) {
	assert.Equal(t, "x86_64", Arch("amd64"))
	assert.Equal(t, "aarch64", Arch("arm64"))
	assert.Equal(t, "x86", Arch("386"))
	assert.Equal(t, "riscv64", Arch("riscv64"))
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "/usr/lib/cosi/plugins/*-linux-aarch64",
		Pattern("/usr/lib/cosi/plugins", Platform{OS: "linux", Arch: "aarch64"}))
}

func TestDiscoverMatchesSuffixCaseSensitively(t *testing.T) {
	dir := t.TempDir()
	mount := touch(t, dir, "mount-linux-x86_64", "")
	hidden := touch(t, dir, ".hidden-linux-x86_64", "")
	touch(t, dir, "mount-darwin-x86_64", "")
	touch(t, dir, "Mount-LINUX-X86_64", "")
	touch(t, dir, "mount-linux-x86_64.sig", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir-linux-x86_64"), 0o755))

	matches, err := Discover(Pattern(dir, testPlatform))
	require.NoError(t, err)
	assert.Equal(t, []string{hidden, mount}, matches)
}

func TestDiscoverMissingDirectoryIsEmpty(t *testing.T) {
	matches, err := Discover(Pattern(filepath.Join(t.TempDir(), "absent"), testPlatform))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadStartsOneMonitorPerMatch(t *testing.T) {
	r := reaper.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Reap(reaper.Any)
			}
		}
	}()

	dir := t.TempDir()
	out := t.TempDir()
	touch(t, dir, "a-linux-x86_64", `echo "$2" > "`+out+`/a"`+"\n")
	touch(t, dir, "b-linux-x86_64", `echo "$2" > "`+out+`/b"`+"\n")
	touch(t, dir, "c-windows-x86_64", "exit 0\n")

	loader := New("plugins", r, Options{
		Address:  "/run/cosi/engine.sock",
		Platform: testPlatform,
		Monitor: managedprocess.MonitorOptions{
			Manager: managedprocess.ManagerOptions{TeardownDelay: time.Millisecond},
			NewPolicy: func() managedprocess.RestartPolicy {
				return managedprocess.OnCondition{Condition: managedprocess.RestartNever}
			},
		},
	}, nil)

	paths, err := loader.Load(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a-linux-x86_64"),
		filepath.Join(dir, "b-linux-x86_64"),
	}, paths)

	loader.Wait()

	for _, name := range []string{"a", "b"} {
		content, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, "/run/cosi/engine.sock\n", string(content))
	}

	stats := loader.Stats()
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.Equal(t, 1, s.Spawns)
		assert.Equal(t, processstatemachine.ProcessStateStopped, s.State)
	}
}

func TestLoadExecutableRejectsMissingPath(t *testing.T) {
	loader := New("runtime", reaper.New(nil), Options{Address: "addr"}, nil)
	err := loader.LoadExecutable(context.Background(), filepath.Join(t.TempDir(), "runtime"))
	assert.Error(t, err)
	assert.Empty(t, loader.Monitors())
}

func TestNewFillsHostPlatform(t *testing.T) {
	loader := New("generators", reaper.New(nil), Options{}, nil)
	assert.Equal(t, HostPlatform(), loader.options.Platform)
}
