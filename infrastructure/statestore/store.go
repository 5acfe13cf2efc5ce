// Package statestore implements ports.StateStore over pluggable backends.
//
// A Backend stores raw encoded values in named buckets. A Store is the view
// a plugin sees: it maps each scope onto a bucket, with the local scope
// namespaced so that two modules never share local keys.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/value"
	"github.com/reglet-dev/plughost/wireformat"
)

// Backend is raw bucketed storage. Values are opaque encoded bytes.
type Backend interface {
	// Get returns the bytes under key, and false when the key is absent.
	Get(ctx context.Context, bucket, key string) ([]byte, bool, error)

	// Set stores raw under key.
	Set(ctx context.Context, bucket, key string, raw []byte) error

	// Entries returns every key of bucket with its bytes.
	Entries(ctx context.Context, bucket string) (map[string][]byte, error)

	// Replace swaps the whole bucket for entries. A nil map empties it.
	Replace(ctx context.Context, bucket string, entries map[string][]byte) error

	// Close releases the backend.
	Close() error
}

// Store implements ports.StateStore on a Backend.
type Store struct {
	backend   Backend
	namespace string
}

// NewStore returns a view of backend whose local scope belongs to
// namespace. The host uses the caller's module UUID.
func NewStore(backend Backend, namespace string) *Store {
	return &Store{backend: backend, namespace: namespace}
}

// Namespace returns the local-scope namespace.
func (s *Store) Namespace() string {
	return s.namespace
}

func (s *Store) bucket(scope entities.StateScope) (string, error) {
	switch scope {
	case entities.ScopeLocal:
		if s.namespace == "" {
			return "local:_", nil
		}
		return "local:" + s.namespace, nil
	case entities.ScopeHost:
		return "host", nil
	case entities.ScopeShared:
		return "shared", nil
	default:
		return "", errors.Newf(errors.CodeInvalidParameter, "unknown state scope %s", scope)
	}
}

// Format returns ports.StateFormat.
func (s *Store) Format() string {
	return ports.StateFormat
}

// Load replaces scope with the YAML document data.
func (s *Store) Load(ctx context.Context, scope entities.StateScope, data []byte) error {
	bucket, err := s.bucket(scope)
	if err != nil {
		return err
	}
	entries, err := decodeDocument(data)
	if err != nil {
		return err
	}
	if err := s.backend.Replace(ctx, bucket, entries); err != nil {
		return errors.Wrap(errors.CodeIO, "failed to load state", err)
	}
	return nil
}

// Save renders scope as a YAML document.
func (s *Store) Save(ctx context.Context, scope entities.StateScope) ([]byte, error) {
	bucket, err := s.bucket(scope)
	if err != nil {
		return nil, err
	}
	entries, err := s.backend.Entries(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "failed to read state", err)
	}
	return encodeDocument(entries)
}

// Get decodes the value under key. The result owns no pooled memory.
func (s *Store) Get(ctx context.Context, scope entities.StateScope, key string) (value.Value, bool, error) {
	bucket, err := s.bucket(scope)
	if err != nil {
		return value.Null(), false, err
	}
	raw, ok, err := s.backend.Get(ctx, bucket, key)
	if err != nil {
		return value.Null(), false, errors.Wrap(errors.CodeIO, "failed to read state", err)
	}
	if !ok {
		return value.Null(), false, nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return value.Null(), false, err
	}
	return v, true, nil
}

// Set encodes v under key. Pointer values are rejected.
func (s *Store) Set(ctx context.Context, scope entities.StateScope, key string, v value.Value) error {
	if key == "" {
		return errors.New(errors.CodeInvalidParameter, "empty state key")
	}
	bucket, err := s.bucket(scope)
	if err != nil {
		return err
	}
	raw, err := encodeValue(v)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, bucket, key, raw); err != nil {
		return errors.Wrap(errors.CodeIO, "failed to write state", err)
	}
	return nil
}

// List returns the keys of scope, sorted.
func (s *Store) List(ctx context.Context, scope entities.StateScope) ([]string, error) {
	bucket, err := s.bucket(scope)
	if err != nil {
		return nil, err
	}
	entries, err := s.backend.Entries(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIO, "failed to read state", err)
	}
	return sortedKeys(entries), nil
}

// Clear empties scope.
func (s *Store) Clear(ctx context.Context, scope entities.StateScope) error {
	bucket, err := s.bucket(scope)
	if err != nil {
		return err
	}
	if err := s.backend.Replace(ctx, bucket, nil); err != nil {
		return errors.Wrap(errors.CodeIO, "failed to clear state", err)
	}
	return nil
}

var _ ports.StateStore = (*Store)(nil)

func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeValue(v value.Value) ([]byte, error) {
	w, err := value.ToWire(v)
	if err != nil {
		return nil, errors.Wrap(errors.CodeEncoding, "failed to encode state value", err)
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(errors.CodeEncoding, "failed to encode state value", err)
	}
	return raw, nil
}

func decodeValue(raw []byte) (value.Value, error) {
	var w wireformat.ValueWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return value.Null(), errors.Wrap(errors.CodeDataCorrupted, "failed to decode state value", err)
	}
	v, err := value.FromWire(w)
	if err != nil {
		return value.Null(), errors.Wrap(errors.CodeDataCorrupted, "failed to decode state value", err)
	}
	return v, nil
}

// encodeDocument renders entries as a YAML mapping from key to value wire
// form. The stored JSON is parsed as YAML so integers keep full precision.
func encodeDocument(entries map[string][]byte) ([]byte, error) {
	doc := make(map[string]any, len(entries))
	for k, raw := range entries {
		var node any
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return nil, errors.Wrap(errors.CodeDataCorrupted, fmt.Sprintf("state key %q", k), err)
		}
		doc[k] = node
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(errors.CodeEncoding, "failed to marshal state document", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (map[string][]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.CodeParse, "failed to parse state document", err)
	}
	entries := make(map[string][]byte, len(doc))
	for k, node := range doc {
		raw, err := json.Marshal(node)
		if err != nil {
			return nil, errors.Wrap(errors.CodeParse, fmt.Sprintf("state key %q", k), err)
		}
		if _, err := decodeValue(raw); err != nil {
			return nil, errors.Wrap(errors.CodeParse, fmt.Sprintf("state key %q", k), err)
		}
		entries[k] = raw
	}
	return entries, nil
}
