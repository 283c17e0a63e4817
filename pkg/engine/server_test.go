//go:build unix

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOverSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "hsu")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socketPath := filepath.Join(dir, "engine.sock")

	service := NewService(nil)
	server, err := NewServer(service, transport.ServerOptions{
		Transport: transport.UDSTransportConfig(socketPath),
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	conn, err := transport.Dial(socketPath, nil)
	require.NoError(t, err)
	defer conn.Close()
	client := NewEngineClient(conn.GRPC())

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	_, err = client.Register(callCtx, &Plugin{Name: "mount"})
	require.NoError(t, err)

	_, err = client.Register(callCtx, &Plugin{Name: "mount"})
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))
	assert.Contains(t, err.Error(), `plugin is already registered: "mount"`)

	assert.Len(t, service.Plugins(), 1)
}
