package engine

import (
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer binds the registry and a health service to the rendezvous listener.
func NewServer(service *Service, options transport.ServerOptions, logger logging.Logger) (*transport.Server, error) {
	server, err := transport.NewServer(options, logger)
	if err != nil {
		return nil, err
	}

	RegisterEngineServer(server.Registrar(), service)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server.Registrar(), healthServer)

	return server, nil
}
