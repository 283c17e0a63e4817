package engine

import (
	"context"

	"github.com/core-tools/hsu-engine/pkg/api"

	"google.golang.org/grpc"
)

const (
	ServiceName            = "cosi.engine.v1alpha1.Engine"
	RegisterFullMethodName = "/" + ServiceName + "/Register"
)

// EngineServer is the server API of the Engine service.
type EngineServer interface {
	Register(context.Context, *Plugin) (*RegisterResponse, error)
}

var Engine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    api.UnaryHandler(RegisterFullMethodName, EngineServer.Register),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cosi/engine/v1alpha1/engine.proto",
}

func RegisterEngineServer(s grpc.ServiceRegistrar, srv EngineServer) {
	s.RegisterService(&Engine_ServiceDesc, srv)
}

// EngineClient is the client API of the Engine service.
type EngineClient interface {
	Register(ctx context.Context, in *Plugin, opts ...grpc.CallOption) (*RegisterResponse, error)
}

type engineClient struct {
	cc grpc.ClientConnInterface
}

func NewEngineClient(cc grpc.ClientConnInterface) EngineClient {
	return &engineClient{cc}
}

func (c *engineClient) Register(ctx context.Context, in *Plugin, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return api.Invoke[Plugin, RegisterResponse](ctx, c.cc, RegisterFullMethodName, in, opts...)
}
