//go:build unix

package enginerunner

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/engineconfig"
	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/loader"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/plugin"
	"github.com/core-tools/hsu-engine/pkg/processstatemachine"
	"github.com/core-tools/hsu-engine/pkg/reaper"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func testConfig(t *testing.T) (*engineconfig.EngineConfig, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "hsu")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	config := engineconfig.DefaultConfig()
	config.Engine.Socket = filepath.Join(dir, "engine.sock")
	config.Engine.ShutdownTimeout = time.Second
	config.Discovery.PluginsDir = filepath.Join(dir, "plugins")
	config.Discovery.GeneratorsDir = filepath.Join(dir, "generators")
	config.Supervision.TeardownDelay = 10 * time.Millisecond
	config.Supervision.HandOffRetry = 5 * time.Millisecond
	config.Supervision.Restart.Condition = "never"
	return config, dir
}

func TestRunnerSupervisesDiscoveredExecutables(t *testing.T) {
	config, dir := testConfig(t)
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))

	host := loader.HostPlatform()
	suffix := "-" + host.OS + "-" + host.Arch
	script := `echo "$1 $2" > "` + out + `/$(basename "$0").args"
cat > "` + out + `/$(basename "$0").stdin"
`
	writeExecutable(t, config.Discovery.PluginsDir, "mount"+suffix, script)
	writeExecutable(t, config.Discovery.PluginsDir, "resolver-plan9-mips", script)
	writeExecutable(t, config.Discovery.GeneratorsDir, "disk"+suffix, script)

	runner, err := New(config, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("engine did not stop")
		}
	}()

	require.Eventually(t, func() bool {
		summary := runner.Summary()
		if len(summary.Plugins) != 1 || len(summary.Generators) != 1 {
			return false
		}
		return summary.Plugins[0].State == processstatemachine.ProcessStateStopped &&
			summary.Generators[0].State == processstatemachine.ProcessStateStopped
	}, 10*time.Second, 10*time.Millisecond)

	for _, name := range []string{"mount" + suffix, "disk" + suffix} {
		args, err := os.ReadFile(filepath.Join(out, name+".args"))
		require.NoError(t, err)
		assert.Equal(t, "--address "+config.Engine.Socket+"\n", string(args))

		handshake, err := os.ReadFile(filepath.Join(out, name+".stdin"))
		require.NoError(t, err)
		assert.Equal(t, config.Engine.Socket, string(handshake))
	}
	_, err = os.Stat(filepath.Join(out, "resolver-plan9-mips.args"))
	assert.True(t, os.IsNotExist(err))

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	require.NoError(t, plugin.Register(callCtx, config.Engine.Socket, "mount", nil))
	require.NoError(t, plugin.Register(callCtx, config.Engine.Socket, "mount", nil))

	registered := runner.Summary().Registered
	require.Len(t, registered, 1)
	assert.Equal(t, "mount", registered[0].Name)
}

func TestRunnerSurvivesMissingRuntime(t *testing.T) {
	config, dir := testConfig(t)
	config.Runtime.Executable = filepath.Join(dir, "missing-runtime")

	runner, err := New(config, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.NoError(t, runner.Run(ctx))
	assert.Empty(t, runner.Summary().Runtime)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config, _ := testConfig(t)
	config.Supervision.Restart.Strategy = "sometimes"

	_, err := New(config, nil)
	assert.Error(t, err)
}

func TestNewRejectsHeldSocket(t *testing.T) {
	config, _ := testConfig(t)

	_, err := New(config, nil)
	require.NoError(t, err)

	_, err = New(config, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestSignalPolicies(t *testing.T) {
	logger := logging.NewNullLogger()
	r := reaper.New(nil)

	ignoring := newSignalService(r, false, logger)
	assert.False(t, ignoring.handlers.Hangup())
	assert.False(t, ignoring.handlers.Interrupt())
	assert.False(t, ignoring.handlers.Terminate())

	stopping := newSignalService(r, true, logger)
	assert.False(t, stopping.handlers.Hangup())
	assert.True(t, stopping.handlers.Interrupt())
	assert.True(t, stopping.handlers.Terminate())
	assert.NotNil(t, stopping.handlers.Child)
}

func TestMetricsService(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	address := "127.0.0.1:" + strconv.Itoa(port)

	service := newMetricsService(address, time.Second, logging.NewNullLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Serve(ctx) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + address + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "hsu_engine_")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
