package runtime

import (
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer registers the three façade services and a health service on one listener.
func NewServer(service *Service, state *State, options transport.ServerOptions, logger logging.Logger) (*transport.Server, error) {
	server, err := transport.NewServer(options, logger)
	if err != nil {
		return nil, err
	}

	RegisterControllerRuntimeServer(server.Registrar(), service)
	RegisterControllerAdapterServer(server.Registrar(), service)
	RegisterStateServer(server.Registrar(), state)

	healthServer := health.NewServer()
	for _, name := range []string{ControllerRuntimeServiceName, ControllerAdapterServiceName, StateServiceName} {
		healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(server.Registrar(), healthServer)

	return server, nil
}
