package runtime

// Metadata identifies a resource and tracks its lifecycle.
type Metadata struct {
	Version    string   `json:"version"`
	Type       string   `json:"type"`
	Namespace  string   `json:"namespace"`
	ID         string   `json:"id"`
	Phase      string   `json:"phase"`
	Finalizers []string `json:"finalizers,omitempty"`
	Owner      string   `json:"owner,omitempty"`
}

// Spec carries the resource body. YAMLSpec holds the JSON rendering of the
// manifest spec (JSON is valid YAML).
type Spec struct {
	ProtoSpec []byte `json:"proto_spec,omitempty"`
	YAMLSpec  string `json:"yaml_spec"`
}

type Resource struct {
	Metadata *Metadata `json:"metadata"`
	Spec     *Spec     `json:"spec"`
}

type ControllerInputKind int32

const (
	ControllerInputWeak ControllerInputKind = iota
	ControllerInputStrong
)

type ControllerInput struct {
	Kind      ControllerInputKind `json:"kind"`
	Namespace string              `json:"namespace"`
	Type      string              `json:"type"`
	ID        *string             `json:"id,omitempty"`
}

type ControllerOutputKind int32

const (
	ControllerOutputExclusive ControllerOutputKind = iota
	ControllerOutputShared
)

type ControllerOutput struct {
	Type string               `json:"type"`
	Kind ControllerOutputKind `json:"kind"`
}

// ControllerRuntime messages

type RegisterControllerRequest struct {
	ControllerName string             `json:"controller_name"`
	Inputs         []ControllerInput  `json:"inputs"`
	Outputs        []ControllerOutput `json:"outputs"`
}

type RegisterControllerResponse struct {
	ControllerToken string `json:"controller_token"`
}

type StartRequest struct{}
type StartResponse struct{}
type StopRequest struct{}
type StopResponse struct{}

// ControllerAdapter messages. Every request is scoped by the token returned
// from RegisterController.

type ReconcileEventsRequest struct {
	ControllerToken string `json:"controller_token"`
}

type ReconcileEventsResponse struct{}

type QueueReconcileRequest struct {
	ControllerToken string `json:"controller_token"`
}

type QueueReconcileResponse struct{}

type UpdateInputsRequest struct {
	ControllerToken string            `json:"controller_token"`
	Inputs          []ControllerInput `json:"inputs"`
}

type UpdateInputsResponse struct{}

// ResourceRef addresses a single resource on behalf of a controller.
type ResourceRef struct {
	ControllerToken string `json:"controller_token"`
	Namespace       string `json:"namespace"`
	Type            string `json:"type"`
	ID              string `json:"id"`
}

type RuntimeGetRequest = ResourceRef

type RuntimeGetResponse struct {
	Resource *Resource `json:"resource"`
}

type RuntimeListRequest struct {
	ControllerToken string `json:"controller_token"`
	Namespace       string `json:"namespace"`
	Type            string `json:"type"`
}

type RuntimeListResponse struct {
	Resource *Resource `json:"resource"`
}

type RuntimeWatchForRequest = ResourceRef

type RuntimeWatchForResponse struct {
	Resource *Resource `json:"resource"`
}

type RuntimeCreateRequest struct {
	ControllerToken string    `json:"controller_token"`
	Resource        *Resource `json:"resource"`
}

type RuntimeCreateResponse struct{}

type RuntimeUpdateRequest struct {
	ControllerToken string    `json:"controller_token"`
	CurrentVersion  string    `json:"current_version"`
	NewResource     *Resource `json:"new_resource"`
}

type RuntimeUpdateResponse struct{}

type RuntimeTeardownRequest = ResourceRef

type RuntimeTeardownResponse struct {
	Ready bool `json:"ready"`
}

type RuntimeDestroyRequest = ResourceRef

type RuntimeDestroyResponse struct{}

type RuntimeFinalizerRequest struct {
	ResourceRef
	Finalizers []string `json:"finalizers"`
}

type RuntimeAddFinalizerRequest = RuntimeFinalizerRequest
type RuntimeAddFinalizerResponse struct{}
type RuntimeRemoveFinalizerRequest = RuntimeFinalizerRequest
type RuntimeRemoveFinalizerResponse struct{}

// State messages

type CreateOptions struct {
	Owner string `json:"owner"`
}

type CreateRequest struct {
	Resource *Resource     `json:"resource"`
	Options  CreateOptions `json:"options"`
}

type CreateResponse struct{}

type DestroyOptions struct {
	Owner string `json:"owner"`
}

type DestroyRequest struct {
	Namespace string         `json:"namespace"`
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Options   DestroyOptions `json:"options"`
}

type DestroyResponse struct{}
