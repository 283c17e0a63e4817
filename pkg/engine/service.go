// Package engine implements the plugin registry served on the engine's
// rendezvous socket.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/metrics"
)

// Service keeps the registered plugins in registration order. Names are
// unique for the lifetime of the engine; there is no deregistration.
type Service struct {
	mutex   sync.Mutex
	plugins []Registration
	logger  logging.Logger
}

func NewService(logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Service{logger: logger}
}

func (s *Service) Register(ctx context.Context, plugin *Plugin) (*RegisterResponse, error) {
	if plugin == nil || plugin.Name == "" {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, errors.ToStatus(errors.NewValidationError("plugin name is required", nil))
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, registered := range s.plugins {
		if registered.Name == plugin.Name {
			metrics.RegistrationsTotal.WithLabelValues("already_exists").Inc()
			s.logger.Warnf("Rejected duplicate registration of %q", plugin.Name)
			return nil, errors.ToStatus(errors.NewConflictError(
				fmt.Sprintf("plugin is already registered: %q", plugin.Name), nil))
		}
	}

	s.plugins = append(s.plugins, Registration{
		Name:         plugin.Name,
		RegisteredAt: time.Now(),
	})
	metrics.RegistrationsTotal.WithLabelValues("registered").Inc()
	s.logger.Infof("Registered plugin %q", plugin.Name)

	return &RegisterResponse{}, nil
}

// Plugins returns a snapshot of the registry.
func (s *Service) Plugins() []Registration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	plugins := make([]Registration, len(s.plugins))
	copy(plugins, s.plugins)
	return plugins
}
