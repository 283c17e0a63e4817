package transport

import (
	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Connection is a client connection to one of the engine's services
type Connection interface {
	GRPC() grpc.ClientConnInterface
	Close() error
}

// Dial creates a lazy gRPC client connection to address (see ParseAddress).
// No I/O happens until the first call.
func Dial(address string, logger logging.Logger, opts ...grpc.DialOption) (Connection, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	config, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	dialTarget, err := target(config)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Dialing %s", dialTarget)

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	grpcClientConnection, err := grpc.NewClient(dialTarget, dialOpts...)
	if err != nil {
		return nil, errors.NewIOError("failed to create client connection", err).WithContext("address", address)
	}

	return &connection{
		grpcClientConnection: grpcClientConnection,
		address:              address,
		logger:               logger,
	}, nil
}

type connection struct {
	grpcClientConnection *grpc.ClientConn
	address              string
	logger               logging.Logger
}

func (c *connection) GRPC() grpc.ClientConnInterface {
	return c.grpcClientConnection
}

func (c *connection) Close() error {
	c.logger.Debugf("Closing client connection to %s", c.address)
	return c.grpcClientConnection.Close()
}
