package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/entities"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestGenerateSchema_SimpleStruct(t *testing.T) {
	type SimpleConfig struct {
		Host string `json:"host"`
		Port int    `json:"port,omitempty"`
	}

	schema, err := GenerateSchema(SimpleConfig{})
	require.NoError(t, err)

	decoded := decode(t, schema)
	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	assert.Contains(t, properties, "host")
	assert.Contains(t, properties, "port")

	required, ok := decoded["required"].([]any)
	require.True(t, ok, "required should be an array")
	assert.Equal(t, []any{"host"}, required)
}

func TestGenerateSchema_AllowsUnknownProperties(t *testing.T) {
	type Open struct {
		Name string `json:"name"`
	}

	schema, err := GenerateSchema(Open{})
	require.NoError(t, err)

	decoded := decode(t, schema)
	assert.NotContains(t, decoded, "additionalProperties")
}

func TestGenerateSchema_TaskDescriptor(t *testing.T) {
	schema, err := GenerateSchema(entities.TaskDescriptor{})
	require.NoError(t, err)

	decoded := decode(t, schema)
	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"action", "category", "input_format", "output_format", "parameters", "constraints", "priority"} {
		assert.Contains(t, properties, field)
	}

	required, ok := decoded["required"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"action"}, required)
	assert.Contains(t, string(schema), "thread_safe")
}

func TestRegistry(t *testing.T) {
	type withX struct {
		X int `json:"x"`
	}
	type empty struct{}

	r := NewRegistry()
	require.NoError(t, r.Register("b", withX{}))
	require.NoError(t, r.Register("a", empty{}))

	assert.Equal(t, []string{"a", "b"}, r.List())

	s, ok := r.GetSchema("b")
	require.True(t, ok)
	assert.Contains(t, s, `"x"`)

	_, ok = r.GetSchema("missing")
	assert.False(t, ok)

	assert.Error(t, r.Register("a", empty{}), "strict mode rejects duplicates")

	lenient := NewRegistry(WithStrictMode(false))
	require.NoError(t, lenient.Register("a", empty{}))
	assert.NoError(t, lenient.Register("a", withX{}))
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	s, ok := r.GetSchema(KindTaskDescriptor)
	require.True(t, ok)
	assert.Contains(t, s, "action")
}
