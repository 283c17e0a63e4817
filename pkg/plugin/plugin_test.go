//go:build unix

package plugin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/engine"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestReadAddress(t *testing.T) {
	address, err := ReadAddress(strings.NewReader("/run/cosi/engine.sock"))
	require.NoError(t, err)
	assert.Equal(t, "/run/cosi/engine.sock", address)

	_, err = ReadAddress(strings.NewReader(""))
	assert.Error(t, err)
}

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hsu")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "engine.sock")
}

func serveEngine(t *testing.T, socket string) *engine.Service {
	t.Helper()
	service := engine.NewService(nil)
	server, err := engine.NewServer(service, transport.ServerOptions{
		Transport: transport.UDSTransportConfig(socket),
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return service
}

func TestRegisterTreatsDuplicateAsRegistered(t *testing.T) {
	socket := socketPath(t)
	service := serveEngine(t, socket)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, Register(ctx, socket, "mount", nil))
	require.NoError(t, Register(ctx, socket, "mount", nil))
	assert.Len(t, service.Plugins(), 1)
}

func TestRetryRegisterWaitsForEngine(t *testing.T) {
	socket := socketPath(t)

	registered := make(chan error, 1)
	go func() {
		registered <- RetryRegister(context.Background(), socket, "mount",
			RetryOptions{RetryAttempts: 10, RetryInterval: 20 * time.Millisecond}, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	service := serveEngine(t, socket)

	select {
	case err := <-registered:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("registration never completed")
	}
	require.Len(t, service.Plugins(), 1)
	assert.Equal(t, "mount", service.Plugins()[0].Name)
}

func TestRetryRegisterGivesUp(t *testing.T) {
	err := RetryRegister(context.Background(), socketPath(t), "mount",
		RetryOptions{RetryAttempts: 2, RetryInterval: time.Millisecond}, nil)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
