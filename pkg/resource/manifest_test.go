package resource

import (
	"strings"
	"testing"

	"github.com/core-tools/hsu-engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifests = `
api: cosi.dev
version: v1alpha1
type: Mount
namespace: system
id: root
spec:
  source: /dev/sda1
  target: /
  options: [rw, noatime]
---
---
api: cosi.dev
version: v1alpha1
type: Resolver
namespace: system
id: default
spec:
  nameservers:
    - 1.1.1.1
`

func TestDecodeManifests(t *testing.T) {
	instances, err := DecodeManifests(strings.NewReader(manifests))
	require.NoError(t, err)
	require.Len(t, instances, 2)

	assert.Equal(t, "Mount: root", instances[0].String())
	assert.Equal(t, "Resolver", instances[1].Type)

	resource, err := instances[0].ToResource()
	require.NoError(t, err)
	assert.Equal(t, "system", resource.Metadata.Namespace)
	assert.Equal(t, PhaseRunning, resource.Metadata.Phase)
	assert.JSONEq(t, `{"source":"/dev/sda1","target":"/","options":["rw","noatime"]}`, resource.Spec.YAMLSpec)
}

func TestDecodeManifestsRequiresIdentity(t *testing.T) {
	_, err := DecodeManifests(strings.NewReader("type: Mount\nnamespace: system\n"))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Contains(t, err.Error(), "field=id")
}

func TestDecodeManifestsRejectsMalformedYAML(t *testing.T) {
	_, err := DecodeManifests(strings.NewReader("type: [unterminated\n"))
	assert.True(t, errors.IsValidationError(err))
}
