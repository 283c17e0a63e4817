package resource

import (
	"context"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/runtime"

	"google.golang.org/grpc"
)

// Owner is recorded on every resource created or destroyed from a manifest.
const Owner = "system"

// StateClient is the part of the State service the manifest commands use.
type StateClient interface {
	Create(ctx context.Context, in *runtime.CreateRequest, opts ...grpc.CallOption) (*runtime.CreateResponse, error)
	Destroy(ctx context.Context, in *runtime.DestroyRequest, opts ...grpc.CallOption) (*runtime.DestroyResponse, error)
}

// CreateAll creates every instance in order. A resource that already exists
// is skipped; any other failure stops the run.
func CreateAll(ctx context.Context, client StateClient, instances []Instance, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	for _, instance := range instances {
		logger.Infof("Creating %s", instance)

		resource, err := instance.ToResource()
		if err != nil {
			return err
		}

		_, err = client.Create(ctx, &runtime.CreateRequest{
			Resource: resource,
			Options:  runtime.CreateOptions{Owner: Owner},
		})
		switch {
		case errors.IsAlreadyExists(err):
			logger.Infof("Already exists")
		case err != nil:
			return err
		default:
			logger.Infof("Created")
		}
	}
	return nil
}

// DestroyAll destroys every instance in order and stops at the first failure.
func DestroyAll(ctx context.Context, client StateClient, instances []Instance, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	for _, instance := range instances {
		logger.Infof("Deleting %s", instance)

		_, err := client.Destroy(ctx, &runtime.DestroyRequest{
			Namespace: instance.Namespace,
			Type:      instance.Type,
			ID:        instance.ID,
			Options:   runtime.DestroyOptions{Owner: Owner},
		})
		if err != nil {
			return err
		}
		logger.Infof("Deleted")
	}
	return nil
}
