package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reglet-dev/plughost/domain/entities"
)

func TestProtocolFor(t *testing.T) {
	tests := []struct {
		action string
		want   entities.Capability
	}{
		{"", entities.CapabilitySingleTask | entities.CapabilityAsyncTask},
		{"execute", entities.CapabilitySingleTask | entities.CapabilityAsyncTask},
		{"Execute", entities.CapabilitySingleTask | entities.CapabilityAsyncTask},
		{"execute_async", entities.CapabilityAsyncTask},
		{"run", entities.CapabilityResident},
		{"start", entities.CapabilityResident},
		{"resident", entities.CapabilityResident},
		{"state", entities.CapabilityState},
		{"manage", entities.CapabilityManager},
		{"transcode", 0},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, ProtocolFor(tt.action))
		})
	}
}

func TestRequirementFor(t *testing.T) {
	yes := true
	desc := &entities.TaskDescriptor{
		Action:   "execute",
		Category: "http",
		Constraints: &entities.TaskConstraints{
			ThreadSafe:   &yes,
			Capabilities: []string{"encryption"},
			Exclude:      []uint64{4},
		},
	}

	req, err := RequirementFor(desc)
	assert.NoError(t, err)
	assert.Equal(t, entities.CapabilityHTTPClient|entities.CapabilityEncryption, req.Required)

	ok := entities.Candidate{
		Instance:       1,
		SupportedTypes: entities.CapabilitySingleTask | entities.CapabilityHTTPClient | entities.CapabilityEncryption,
		ThreadSafe:     true,
	}
	assert.True(t, req.Accepts(ok))

	excluded := ok
	excluded.Instance = 4
	assert.False(t, req.Accepts(excluded))

	unsafe := ok
	unsafe.ThreadSafe = false
	assert.False(t, req.Accepts(unsafe))

	noProtocol := ok
	noProtocol.SupportedTypes = entities.CapabilityHTTPClient | entities.CapabilityEncryption
	assert.False(t, req.Accepts(noProtocol))
}
