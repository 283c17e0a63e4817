package transport

import (
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/core-tools/hsu-engine/pkg/errors"

	"github.com/gofrs/flock"
)

// TransportType selects the listener kind
type TransportType string

const (
	TransportAuto TransportType = "auto"
	TransportUDS  TransportType = "uds"
	TransportTCP  TransportType = "tcp"
)

const (
	DefaultSocketPath = "/var/run/cosi/engine.sock"
	DefaultTCPAddress = "127.0.0.1:50000"
)

// TransportConfig configures a listener
type TransportConfig struct {
	// Transport type (auto, uds, tcp)
	TransportType TransportType `yaml:"type"`

	// Unix domain socket path
	SocketPath string `yaml:"socket"`

	// TCP address (host:port)
	TCPAddress string `yaml:"tcp_address"`

	// Unix socket file permissions
	FileMode os.FileMode `yaml:"file_mode"`
}

// DefaultTransportConfig returns the default transport configuration for the platform
func DefaultTransportConfig() TransportConfig {
	if runtime.GOOS == "windows" {
		return DefaultTCPTransportConfig()
	}
	return TransportConfig{
		TransportType: TransportUDS,
		SocketPath:    DefaultSocketPath,
		FileMode:      0600,
	}
}

// DefaultTCPTransportConfig returns the loopback TCP configuration used by the runtime
func DefaultTCPTransportConfig() TransportConfig {
	return TransportConfig{
		TransportType: TransportTCP,
		TCPAddress:    DefaultTCPAddress,
	}
}

// UDSTransportConfig is a shortcut for a socket at path with owner-only permissions
func UDSTransportConfig(path string) TransportConfig {
	return TransportConfig{
		TransportType: TransportUDS,
		SocketPath:    path,
		FileMode:      0600,
	}
}

// CreateListener creates a network listener based on the transport configuration
func CreateListener(config TransportConfig) (net.Listener, error) {
	if config.TransportType == TransportAuto || config.TransportType == "" {
		defaults := DefaultTransportConfig()
		if config.SocketPath != "" {
			defaults.SocketPath = config.SocketPath
		}
		config = defaults
	}

	switch config.TransportType {
	case TransportUDS:
		return createUDSListener(config)
	case TransportTCP:
		return createTCPListener(config)
	default:
		return nil, errors.NewValidationError("invalid transport type", nil).
			WithContext("transport_type", config.TransportType)
	}
}

// lockedListener holds the socket's lock file for as long as it listens
type lockedListener struct {
	net.Listener
	lock *flock.Flock
}

func (l *lockedListener) Close() error {
	err := l.Listener.Close()
	if unlockErr := l.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// createUDSListener takes "<socket>.lock" first, so a stale socket path is
// only ever removed when no other live process is serving on it.
func createUDSListener(config TransportConfig) (net.Listener, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.NewValidationError("Unix domain sockets are not supported on Windows, use TCP instead", nil)
	}

	socketPath := config.SocketPath
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	if dir := filepath.Dir(socketPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewIOError("failed to create socket directory", err).WithContext("dir", dir)
		}
	}

	lock := flock.New(socketPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.NewIOError("failed to lock socket", err).WithContext("lock_file", lock.Path())
	}
	if !locked {
		return nil, errors.NewConflictError("socket is in use by another process", nil).WithContext("socket", socketPath)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		lock.Unlock()
		return nil, errors.NewIOError("failed to remove stale socket file", err).WithContext("socket", socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		lock.Unlock()
		return nil, errors.NewIOError("failed to create Unix domain socket listener", err).WithContext("socket", socketPath)
	}

	fileMode := config.FileMode
	if fileMode == 0 {
		fileMode = 0600
	}
	if err := os.Chmod(socketPath, fileMode); err != nil {
		listener.Close()
		lock.Unlock()
		return nil, errors.NewIOError("failed to set socket file permissions", err).WithContext("socket", socketPath)
	}

	return &lockedListener{Listener: listener, lock: lock}, nil
}

func createTCPListener(config TransportConfig) (net.Listener, error) {
	address := config.TCPAddress
	if address == "" {
		address = DefaultTCPAddress
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.NewIOError("failed to create TCP listener", err).WithContext("address", address)
	}
	return listener, nil
}
