package runtime

import (
	"context"

	"github.com/core-tools/hsu-engine/pkg/api"

	"google.golang.org/grpc"
)

type ControllerRuntimeClient struct {
	cc grpc.ClientConnInterface
}

func NewControllerRuntimeClient(cc grpc.ClientConnInterface) *ControllerRuntimeClient {
	return &ControllerRuntimeClient{cc}
}

func (c *ControllerRuntimeClient) RegisterController(ctx context.Context, in *RegisterControllerRequest, opts ...grpc.CallOption) (*RegisterControllerResponse, error) {
	return api.Invoke[RegisterControllerRequest, RegisterControllerResponse](ctx, c.cc, method(ControllerRuntimeServiceName, "RegisterController"), in, opts...)
}

func (c *ControllerRuntimeClient) Start(ctx context.Context, in *StartRequest, opts ...grpc.CallOption) (*StartResponse, error) {
	return api.Invoke[StartRequest, StartResponse](ctx, c.cc, method(ControllerRuntimeServiceName, "Start"), in, opts...)
}

func (c *ControllerRuntimeClient) Stop(ctx context.Context, in *StopRequest, opts ...grpc.CallOption) (*StopResponse, error) {
	return api.Invoke[StopRequest, StopResponse](ctx, c.cc, method(ControllerRuntimeServiceName, "Stop"), in, opts...)
}

type ControllerAdapterClient struct {
	cc grpc.ClientConnInterface
}

func NewControllerAdapterClient(cc grpc.ClientConnInterface) *ControllerAdapterClient {
	return &ControllerAdapterClient{cc}
}

func (c *ControllerAdapterClient) ReconcileEvents(ctx context.Context, in *ReconcileEventsRequest, opts ...grpc.CallOption) (api.Receiver[ReconcileEventsResponse], error) {
	return api.InvokeServerStream[ReconcileEventsRequest, ReconcileEventsResponse](ctx, c.cc, &reconcileEventsStreamDesc, method(ControllerAdapterServiceName, "ReconcileEvents"), in, opts...)
}

func (c *ControllerAdapterClient) List(ctx context.Context, in *RuntimeListRequest, opts ...grpc.CallOption) (api.Receiver[RuntimeListResponse], error) {
	return api.InvokeServerStream[RuntimeListRequest, RuntimeListResponse](ctx, c.cc, &listStreamDesc, method(ControllerAdapterServiceName, "List"), in, opts...)
}

func (c *ControllerAdapterClient) QueueReconcile(ctx context.Context, in *QueueReconcileRequest, opts ...grpc.CallOption) (*QueueReconcileResponse, error) {
	return api.Invoke[QueueReconcileRequest, QueueReconcileResponse](ctx, c.cc, method(ControllerAdapterServiceName, "QueueReconcile"), in, opts...)
}

func (c *ControllerAdapterClient) UpdateInputs(ctx context.Context, in *UpdateInputsRequest, opts ...grpc.CallOption) (*UpdateInputsResponse, error) {
	return api.Invoke[UpdateInputsRequest, UpdateInputsResponse](ctx, c.cc, method(ControllerAdapterServiceName, "UpdateInputs"), in, opts...)
}

func (c *ControllerAdapterClient) Get(ctx context.Context, in *RuntimeGetRequest, opts ...grpc.CallOption) (*RuntimeGetResponse, error) {
	return api.Invoke[RuntimeGetRequest, RuntimeGetResponse](ctx, c.cc, method(ControllerAdapterServiceName, "Get"), in, opts...)
}

func (c *ControllerAdapterClient) WatchFor(ctx context.Context, in *RuntimeWatchForRequest, opts ...grpc.CallOption) (*RuntimeWatchForResponse, error) {
	return api.Invoke[RuntimeWatchForRequest, RuntimeWatchForResponse](ctx, c.cc, method(ControllerAdapterServiceName, "WatchFor"), in, opts...)
}

func (c *ControllerAdapterClient) Create(ctx context.Context, in *RuntimeCreateRequest, opts ...grpc.CallOption) (*RuntimeCreateResponse, error) {
	return api.Invoke[RuntimeCreateRequest, RuntimeCreateResponse](ctx, c.cc, method(ControllerAdapterServiceName, "Create"), in, opts...)
}

func (c *ControllerAdapterClient) Update(ctx context.Context, in *RuntimeUpdateRequest, opts ...grpc.CallOption) (*RuntimeUpdateResponse, error) {
	return api.Invoke[RuntimeUpdateRequest, RuntimeUpdateResponse](ctx, c.cc, method(ControllerAdapterServiceName, "Update"), in, opts...)
}

func (c *ControllerAdapterClient) Teardown(ctx context.Context, in *RuntimeTeardownRequest, opts ...grpc.CallOption) (*RuntimeTeardownResponse, error) {
	return api.Invoke[RuntimeTeardownRequest, RuntimeTeardownResponse](ctx, c.cc, method(ControllerAdapterServiceName, "Teardown"), in, opts...)
}

func (c *ControllerAdapterClient) Destroy(ctx context.Context, in *RuntimeDestroyRequest, opts ...grpc.CallOption) (*RuntimeDestroyResponse, error) {
	return api.Invoke[RuntimeDestroyRequest, RuntimeDestroyResponse](ctx, c.cc, method(ControllerAdapterServiceName, "Destroy"), in, opts...)
}

func (c *ControllerAdapterClient) AddFinalizer(ctx context.Context, in *RuntimeAddFinalizerRequest, opts ...grpc.CallOption) (*RuntimeAddFinalizerResponse, error) {
	return api.Invoke[RuntimeAddFinalizerRequest, RuntimeAddFinalizerResponse](ctx, c.cc, method(ControllerAdapterServiceName, "AddFinalizer"), in, opts...)
}

func (c *ControllerAdapterClient) RemoveFinalizer(ctx context.Context, in *RuntimeRemoveFinalizerRequest, opts ...grpc.CallOption) (*RuntimeRemoveFinalizerResponse, error) {
	return api.Invoke[RuntimeRemoveFinalizerRequest, RuntimeRemoveFinalizerResponse](ctx, c.cc, method(ControllerAdapterServiceName, "RemoveFinalizer"), in, opts...)
}

type StateClient struct {
	cc grpc.ClientConnInterface
}

func NewStateClient(cc grpc.ClientConnInterface) *StateClient {
	return &StateClient{cc}
}

func (c *StateClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return api.Invoke[CreateRequest, CreateResponse](ctx, c.cc, method(StateServiceName, "Create"), in, opts...)
}

func (c *StateClient) Destroy(ctx context.Context, in *DestroyRequest, opts ...grpc.CallOption) (*DestroyResponse, error) {
	return api.Invoke[DestroyRequest, DestroyResponse](ctx, c.cc, method(StateServiceName, "Destroy"), in, opts...)
}
