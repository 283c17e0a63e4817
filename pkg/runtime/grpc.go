package runtime

import (
	"context"

	"github.com/core-tools/hsu-engine/pkg/api"

	"google.golang.org/grpc"
)

const (
	ControllerRuntimeServiceName = "cosi.runtime.v1alpha1.ControllerRuntime"
	ControllerAdapterServiceName = "cosi.runtime.v1alpha1.ControllerAdapter"
	StateServiceName             = "cosi.resource.v1alpha1.State"
)

func method(service, name string) string {
	return "/" + service + "/" + name
}

// ControllerRuntimeServer is the server API of the ControllerRuntime service.
type ControllerRuntimeServer interface {
	RegisterController(context.Context, *RegisterControllerRequest) (*RegisterControllerResponse, error)
	Start(context.Context, *StartRequest) (*StartResponse, error)
	Stop(context.Context, *StopRequest) (*StopResponse, error)
}

var ControllerRuntime_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ControllerRuntimeServiceName,
	HandlerType: (*ControllerRuntimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterController", Handler: api.UnaryHandler(method(ControllerRuntimeServiceName, "RegisterController"), ControllerRuntimeServer.RegisterController)},
		{MethodName: "Start", Handler: api.UnaryHandler(method(ControllerRuntimeServiceName, "Start"), ControllerRuntimeServer.Start)},
		{MethodName: "Stop", Handler: api.UnaryHandler(method(ControllerRuntimeServiceName, "Stop"), ControllerRuntimeServer.Stop)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cosi/runtime/v1alpha1/runtime.proto",
}

func RegisterControllerRuntimeServer(s grpc.ServiceRegistrar, srv ControllerRuntimeServer) {
	s.RegisterService(&ControllerRuntime_ServiceDesc, srv)
}

// ControllerAdapterServer is the server API of the ControllerAdapter service.
type ControllerAdapterServer interface {
	ReconcileEvents(*ReconcileEventsRequest, api.Sender[ReconcileEventsResponse]) error
	QueueReconcile(context.Context, *QueueReconcileRequest) (*QueueReconcileResponse, error)
	UpdateInputs(context.Context, *UpdateInputsRequest) (*UpdateInputsResponse, error)
	Get(context.Context, *RuntimeGetRequest) (*RuntimeGetResponse, error)
	List(*RuntimeListRequest, api.Sender[RuntimeListResponse]) error
	WatchFor(context.Context, *RuntimeWatchForRequest) (*RuntimeWatchForResponse, error)
	Create(context.Context, *RuntimeCreateRequest) (*RuntimeCreateResponse, error)
	Update(context.Context, *RuntimeUpdateRequest) (*RuntimeUpdateResponse, error)
	Teardown(context.Context, *RuntimeTeardownRequest) (*RuntimeTeardownResponse, error)
	Destroy(context.Context, *RuntimeDestroyRequest) (*RuntimeDestroyResponse, error)
	AddFinalizer(context.Context, *RuntimeAddFinalizerRequest) (*RuntimeAddFinalizerResponse, error)
	RemoveFinalizer(context.Context, *RuntimeRemoveFinalizerRequest) (*RuntimeRemoveFinalizerResponse, error)
}

var (
	reconcileEventsStreamDesc = grpc.StreamDesc{
		StreamName:    "ReconcileEvents",
		Handler:       api.ServerStreamHandler(ControllerAdapterServer.ReconcileEvents),
		ServerStreams: true,
	}
	listStreamDesc = grpc.StreamDesc{
		StreamName:    "List",
		Handler:       api.ServerStreamHandler(ControllerAdapterServer.List),
		ServerStreams: true,
	}
)

var ControllerAdapter_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ControllerAdapterServiceName,
	HandlerType: (*ControllerAdapterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueueReconcile", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "QueueReconcile"), ControllerAdapterServer.QueueReconcile)},
		{MethodName: "UpdateInputs", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "UpdateInputs"), ControllerAdapterServer.UpdateInputs)},
		{MethodName: "Get", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "Get"), ControllerAdapterServer.Get)},
		{MethodName: "WatchFor", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "WatchFor"), ControllerAdapterServer.WatchFor)},
		{MethodName: "Create", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "Create"), ControllerAdapterServer.Create)},
		{MethodName: "Update", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "Update"), ControllerAdapterServer.Update)},
		{MethodName: "Teardown", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "Teardown"), ControllerAdapterServer.Teardown)},
		{MethodName: "Destroy", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "Destroy"), ControllerAdapterServer.Destroy)},
		{MethodName: "AddFinalizer", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "AddFinalizer"), ControllerAdapterServer.AddFinalizer)},
		{MethodName: "RemoveFinalizer", Handler: api.UnaryHandler(method(ControllerAdapterServiceName, "RemoveFinalizer"), ControllerAdapterServer.RemoveFinalizer)},
	},
	Streams:  []grpc.StreamDesc{reconcileEventsStreamDesc, listStreamDesc},
	Metadata: "cosi/runtime/v1alpha1/runtime.proto",
}

func RegisterControllerAdapterServer(s grpc.ServiceRegistrar, srv ControllerAdapterServer) {
	s.RegisterService(&ControllerAdapter_ServiceDesc, srv)
}

// StateServer is the server API of the State service used by cosictl.
type StateServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Destroy(context.Context, *DestroyRequest) (*DestroyResponse, error)
}

var State_ServiceDesc = grpc.ServiceDesc{
	ServiceName: StateServiceName,
	HandlerType: (*StateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: api.UnaryHandler(method(StateServiceName, "Create"), StateServer.Create)},
		{MethodName: "Destroy", Handler: api.UnaryHandler(method(StateServiceName, "Destroy"), StateServer.Destroy)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cosi/resource/v1alpha1/state.proto",
}

func RegisterStateServer(s grpc.ServiceRegistrar, srv StateServer) {
	s.RegisterService(&State_ServiceDesc, srv)
}
