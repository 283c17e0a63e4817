package transport

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-engine/pkg/errors"
)

// GetListenerAddress returns a URL-style representation of the listener address
func GetListenerAddress(listener net.Listener) string {
	addr := listener.Addr()
	switch addr.Network() {
	case "tcp":
		return fmt.Sprintf("tcp://%s", addr.String())
	case "unix":
		return fmt.Sprintf("unix://%s", addr.String())
	default:
		return addr.String()
	}
}

// ParseAddress accepts "unix:///path", "tcp://host:port", a bare "host:port"
// or a socket path. Anything with a slash, a leading dot or no port is a path.
func ParseAddress(address string) (TransportConfig, error) {
	switch {
	case address == "":
		return TransportConfig{}, errors.NewValidationError("empty address", nil)
	case strings.HasPrefix(address, "unix://"):
		path := strings.TrimPrefix(address, "unix://")
		if path == "" {
			return TransportConfig{}, errors.NewValidationError("missing socket path", nil).WithContext("address", address)
		}
		return TransportConfig{TransportType: TransportUDS, SocketPath: path}, nil
	case strings.HasPrefix(address, "tcp://"):
		return parseTCP(address, strings.TrimPrefix(address, "tcp://"))
	case strings.Contains(address, "://"):
		return TransportConfig{}, errors.NewValidationError("unsupported address scheme", nil).WithContext("address", address)
	case strings.Contains(address, "/"), strings.HasPrefix(address, "."):
		return TransportConfig{TransportType: TransportUDS, SocketPath: address}, nil
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return TransportConfig{TransportType: TransportUDS, SocketPath: address}, nil
	}
	return TransportConfig{TransportType: TransportTCP, TCPAddress: address}, nil
}

func parseTCP(original, hostPort string) (TransportConfig, error) {
	if _, _, err := net.SplitHostPort(hostPort); err != nil {
		return TransportConfig{}, errors.NewValidationError("invalid TCP address", err).WithContext("address", original)
	}
	return TransportConfig{TransportType: TransportTCP, TCPAddress: hostPort}, nil
}

// target converts a transport configuration to a gRPC dial target
func target(config TransportConfig) (string, error) {
	switch config.TransportType {
	case TransportUDS:
		if filepath.IsAbs(config.SocketPath) {
			return "unix://" + config.SocketPath, nil
		}
		return "unix:" + config.SocketPath, nil
	case TransportTCP:
		return config.TCPAddress, nil
	default:
		return "", errors.NewValidationError("invalid transport type", nil).
			WithContext("transport_type", config.TransportType)
	}
}
