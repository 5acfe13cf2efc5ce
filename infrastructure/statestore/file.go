package statestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileBackendConfig holds configuration for the FileBackend.
type fileBackendConfig struct {
	path     string      // Path to the state document
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for the state document
}

func defaultFileBackendConfig() fileBackendConfig {
	return fileBackendConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".plughost", "state.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileBackendOption configures a FileBackend instance.
type FileBackendOption func(*fileBackendConfig)

// WithPath sets the path to the state document.
func WithPath(path string) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the permissions of the state document.
// Default is 0o600 (user-only).
func WithFilePermissions(perm os.FileMode) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions of created directories.
// Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.dirPerm = perm
	}
}

// fileDocument is the on-disk layout: bucket -> key -> base64 value bytes.
type fileDocument map[string]map[string]string

// FileBackend keeps state in memory and rewrites one YAML document after
// every mutation. Writes go to a temporary file renamed over the target.
type FileBackend struct {
	mem    *MemoryBackend
	config fileBackendConfig
	mu     sync.Mutex
}

// NewFileBackend opens the document at the configured path. A missing file
// starts an empty store.
func NewFileBackend(opts ...FileBackendOption) (*FileBackend, error) {
	cfg := defaultFileBackendConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &FileBackend{mem: NewMemoryBackend(), config: cfg}
	if err := b.read(); err != nil {
		return nil, err
	}
	return b, nil
}

// Path returns the path of the backing document.
func (b *FileBackend) Path() string {
	return b.config.path
}

func (b *FileBackend) read() error {
	data, err := os.ReadFile(b.config.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	for bucket, entries := range doc {
		for key, enc := range entries {
			raw, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return fmt.Errorf("failed to decode state %s/%s: %w", bucket, key, err)
			}
			b.mem.buckets[bucket] = setEntry(b.mem.buckets[bucket], key, raw)
		}
	}
	return nil
}

func setEntry(m map[string][]byte, key string, raw []byte) map[string][]byte {
	if m == nil {
		m = make(map[string][]byte)
	}
	m[key] = raw
	return m
}

// flush writes the whole document. The caller holds b.mu.
func (b *FileBackend) flush() error {
	b.mem.mu.RLock()
	doc := make(fileDocument, len(b.mem.buckets))
	for bucket, entries := range b.mem.buckets {
		out := make(map[string]string, len(entries))
		for key, raw := range entries {
			out[key] = base64.StdEncoding.EncodeToString(raw)
		}
		doc[bucket] = out
	}
	b.mem.mu.RUnlock()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(b.config.path)
	if err := os.MkdirAll(dir, b.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(b.config.filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.config.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (b *FileBackend) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	return b.mem.Get(ctx, bucket, key)
}

func (b *FileBackend) Set(ctx context.Context, bucket, key string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mem.Set(ctx, bucket, key, raw); err != nil {
		return err
	}
	return b.flush()
}

func (b *FileBackend) Entries(ctx context.Context, bucket string) (map[string][]byte, error) {
	return b.mem.Entries(ctx, bucket)
}

func (b *FileBackend) Replace(ctx context.Context, bucket string, entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mem.Replace(ctx, bucket, entries); err != nil {
		return err
	}
	return b.flush()
}

func (b *FileBackend) Close() error { return nil }

var _ Backend = (*FileBackend)(nil)
