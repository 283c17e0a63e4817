// Package resource decodes the YAML resource manifests applied by cosictl.
package resource

import (
	"fmt"
	"io"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/runtime"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// PhaseRunning is the phase given to every resource created from a manifest.
const PhaseRunning = "running"

// Instance is one manifest document.
type Instance struct {
	API       string      `yaml:"api"`
	Version   string      `yaml:"version"`
	Type      string      `yaml:"type"`
	Namespace string      `yaml:"namespace"`
	ID        string      `yaml:"id"`
	Spec      interface{} `yaml:"spec"`
}

func (i Instance) String() string {
	return fmt.Sprintf("%s: %s", i.Type, i.ID)
}

func (i Instance) isEmpty() bool {
	return i.API == "" && i.Version == "" && i.Type == "" && i.Namespace == "" && i.ID == "" && i.Spec == nil
}

func (i Instance) validate() *errors.DomainError {
	missing := ""
	switch {
	case i.Type == "":
		missing = "type"
	case i.Namespace == "":
		missing = "namespace"
	case i.ID == "":
		missing = "id"
	}
	if missing != "" {
		return errors.NewValidationError("manifest field is required", nil).WithContext("field", missing)
	}
	return nil
}

// DecodeManifests reads every YAML document in r. Empty documents are skipped.
func DecodeManifests(r io.Reader) ([]Instance, error) {
	decoder := yaml.NewDecoder(r)

	var instances []Instance
	for index := 0; ; index++ {
		var instance Instance
		err := decoder.Decode(&instance)
		if err == io.EOF {
			return instances, nil
		}
		if err != nil {
			return nil, errors.NewValidationError("failed to decode manifest", err).WithContext("document", index)
		}
		if instance.isEmpty() {
			continue
		}
		if err := instance.validate(); err != nil {
			return nil, err.WithContext("document", index)
		}
		instances = append(instances, instance)
	}
}

// SpecJSON renders the spec as JSON, which is how it travels in Spec.YAMLSpec.
func (i Instance) SpecJSON() (string, error) {
	data, err := json.Marshal(i.Spec)
	if err != nil {
		return "", errors.NewValidationError("spec cannot be rendered as JSON", err).WithContext("resource", i.String())
	}
	return string(data), nil
}

// ToResource converts the manifest to the runtime representation.
func (i Instance) ToResource() (*runtime.Resource, error) {
	spec, err := i.SpecJSON()
	if err != nil {
		return nil, err
	}
	return &runtime.Resource{
		Metadata: &runtime.Metadata{
			Version:   i.Version,
			Type:      i.Type,
			Namespace: i.Namespace,
			ID:        i.ID,
			Phase:     PhaseRunning,
		},
		Spec: &runtime.Spec{YAMLSpec: spec},
	}, nil
}
