// Package config loads the host configuration file and provides typed
// access to the free-form documents plugins exchange with the host:
// resident configuration strings and task descriptor parameters.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/plughost/domain/errors"
)

// Document is a decoded key-value document.
type Document = map[string]any

// ParseDocument decodes a resident configuration string. YAML is a superset
// of JSON, so either form is accepted. An empty string yields an empty
// document.
func ParseDocument(s string) (Document, error) {
	doc := Document{}
	if strings.TrimSpace(s) == "" {
		return doc, nil
	}
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, &errors.ConfigError{Err: fmt.Errorf("failed to parse document: %w", err)}
	}
	return doc, nil
}

// FormatDocument encodes doc as YAML.
func FormatDocument(doc Document) (string, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to format document: %w", err)
	}
	return string(out), nil
}

// GetString extracts a string, returning (value, found).
func GetString(doc Document, key string) (string, bool) {
	s, ok := doc[key].(string)
	return s, ok
}

// GetInt extracts an int from any numeric representation the JSON and
// YAML decoders produce.
func GetInt(doc Document, key string) (int, bool) {
	switch n := doc[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetFloat extracts a float64 from any numeric representation.
func GetFloat(doc Document, key string) (float64, bool) {
	switch n := doc[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetBool extracts a bool, returning (value, found).
func GetBool(doc Document, key string) (bool, bool) {
	b, ok := doc[key].(bool)
	return b, ok
}

// GetStringSlice extracts a list of strings. Decoded arrays arrive as []any.
func GetStringSlice(doc Document, key string) ([]string, bool) {
	arr, ok := doc[key].([]any)
	if !ok {
		return nil, false
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		result = append(result, s)
	}
	return result, true
}

func required[T any](doc Document, key, kind string, get func(Document, string) (T, bool)) (T, error) {
	v, ok := get(doc, key)
	if !ok {
		return v, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required %s field '%s' is missing or has the wrong type", kind, key),
		}
	}
	return v, nil
}

// MustGetString extracts a required string or returns a ConfigError.
func MustGetString(doc Document, key string) (string, error) {
	return required(doc, key, "string", GetString)
}

// MustGetInt extracts a required int or returns a ConfigError.
func MustGetInt(doc Document, key string) (int, error) {
	return required(doc, key, "int", GetInt)
}

// MustGetFloat extracts a required float64 or returns a ConfigError.
func MustGetFloat(doc Document, key string) (float64, error) {
	return required(doc, key, "float", GetFloat)
}

// MustGetBool extracts a required bool or returns a ConfigError.
func MustGetBool(doc Document, key string) (bool, error) {
	return required(doc, key, "bool", GetBool)
}

func withDefault[T any](doc Document, key string, def T, get func(Document, string) (T, bool)) T {
	if v, ok := get(doc, key); ok {
		return v
	}
	return def
}

// GetStringDefault extracts a string or returns def.
func GetStringDefault(doc Document, key, def string) string {
	return withDefault(doc, key, def, GetString)
}

// GetIntDefault extracts an int or returns def.
func GetIntDefault(doc Document, key string, def int) int {
	return withDefault(doc, key, def, GetInt)
}

// GetFloatDefault extracts a float64 or returns def.
func GetFloatDefault(doc Document, key string, def float64) float64 {
	return withDefault(doc, key, def, GetFloat)
}

// GetBoolDefault extracts a bool or returns def.
func GetBoolDefault(doc Document, key string, def bool) bool {
	return withDefault(doc, key, def, GetBool)
}
