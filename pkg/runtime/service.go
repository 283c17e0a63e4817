// Package runtime is the controller runtime façade: the ControllerRuntime,
// ControllerAdapter and State services. Only controller registration and
// resource creation are accepted; every other operation reports
// Unimplemented.
package runtime

import (
	"context"
	"sync"

	"github.com/core-tools/hsu-engine/pkg/api"
	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

// Controller is a registered controller and its declared dependencies.
type Controller struct {
	Token   string
	Inputs  []ControllerInput
	Outputs []ControllerOutput
}

// Service serves ControllerRuntime and ControllerAdapter.
type Service struct {
	mutex       sync.Mutex
	controllers map[string]Controller
	logger      logging.Logger
}

func NewService(logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Service{
		controllers: make(map[string]Controller),
		logger:      logger,
	}
}

// Controllers returns the registered controllers keyed by token.
func (s *Service) Controllers() map[string]Controller {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	controllers := make(map[string]Controller, len(s.controllers))
	for token, controller := range s.controllers {
		controllers[token] = controller
	}
	return controllers
}

// RegisterController hands back the controller name as its token. Registering
// the same name again replaces the declared inputs and outputs.
func (s *Service) RegisterController(ctx context.Context, req *RegisterControllerRequest) (*RegisterControllerResponse, error) {
	if req.ControllerName == "" {
		return nil, errors.ToStatus(errors.NewValidationError("controller name is required", nil))
	}

	s.mutex.Lock()
	s.controllers[req.ControllerName] = Controller{
		Token:   req.ControllerName,
		Inputs:  req.Inputs,
		Outputs: req.Outputs,
	}
	s.mutex.Unlock()

	s.logger.Infof("Registered controller %q, inputs: %d, outputs: %d", req.ControllerName, len(req.Inputs), len(req.Outputs))
	return &RegisterControllerResponse{ControllerToken: req.ControllerName}, nil
}

func (s *Service) Start(context.Context, *StartRequest) (*StartResponse, error) {
	return nil, unimplemented("Start")
}

func (s *Service) Stop(context.Context, *StopRequest) (*StopResponse, error) {
	return nil, unimplemented("Stop")
}

func (s *Service) ReconcileEvents(*ReconcileEventsRequest, api.Sender[ReconcileEventsResponse]) error {
	return unimplemented("ReconcileEvents")
}

func (s *Service) QueueReconcile(context.Context, *QueueReconcileRequest) (*QueueReconcileResponse, error) {
	return nil, unimplemented("QueueReconcile")
}

func (s *Service) UpdateInputs(context.Context, *UpdateInputsRequest) (*UpdateInputsResponse, error) {
	return nil, unimplemented("UpdateInputs")
}

func (s *Service) Get(context.Context, *RuntimeGetRequest) (*RuntimeGetResponse, error) {
	return nil, unimplemented("Get")
}

func (s *Service) List(*RuntimeListRequest, api.Sender[RuntimeListResponse]) error {
	return unimplemented("List")
}

func (s *Service) WatchFor(context.Context, *RuntimeWatchForRequest) (*RuntimeWatchForResponse, error) {
	return nil, unimplemented("WatchFor")
}

func (s *Service) Create(ctx context.Context, req *RuntimeCreateRequest) (*RuntimeCreateResponse, error) {
	if req.Resource != nil && req.Resource.Metadata != nil {
		m := req.Resource.Metadata
		s.logger.Infof("Controller %q created %s/%s/%s", req.ControllerToken, m.Namespace, m.Type, m.ID)
	}
	return &RuntimeCreateResponse{}, nil
}

func (s *Service) Update(context.Context, *RuntimeUpdateRequest) (*RuntimeUpdateResponse, error) {
	return nil, unimplemented("Update")
}

func (s *Service) Teardown(context.Context, *RuntimeTeardownRequest) (*RuntimeTeardownResponse, error) {
	return nil, unimplemented("Teardown")
}

func (s *Service) Destroy(context.Context, *RuntimeDestroyRequest) (*RuntimeDestroyResponse, error) {
	return nil, unimplemented("Destroy")
}

func (s *Service) AddFinalizer(context.Context, *RuntimeAddFinalizerRequest) (*RuntimeAddFinalizerResponse, error) {
	return nil, unimplemented("AddFinalizer")
}

func (s *Service) RemoveFinalizer(context.Context, *RuntimeRemoveFinalizerRequest) (*RuntimeRemoveFinalizerResponse, error) {
	return nil, unimplemented("RemoveFinalizer")
}

// State serves the State service used by cosictl. Requests are accepted and
// logged; nothing is stored.
type State struct {
	logger logging.Logger
}

func NewState(logger logging.Logger) *State {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &State{logger: logger}
}

func (s *State) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	if req.Resource == nil || req.Resource.Metadata == nil {
		return nil, errors.ToStatus(errors.NewValidationError("resource metadata is required", nil))
	}
	m := req.Resource.Metadata
	s.logger.Infof("Create %s/%s/%s, owner: %s", m.Namespace, m.Type, m.ID, req.Options.Owner)
	return &CreateResponse{}, nil
}

func (s *State) Destroy(ctx context.Context, req *DestroyRequest) (*DestroyResponse, error) {
	s.logger.Infof("Destroy %s/%s/%s, owner: %s", req.Namespace, req.Type, req.ID, req.Options.Owner)
	return &DestroyResponse{}, nil
}
