package statestore

import (
	"context"
	"sync"
)

// MemoryBackend keeps state in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, bucket, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, ok := b.buckets[bucket][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, bucket, key string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, ok := b.buckets[bucket]
	if !ok {
		entries = make(map[string][]byte)
		b.buckets[bucket] = entries
	}
	entries[key] = append([]byte(nil), raw...)
	return nil
}

func (b *MemoryBackend) Entries(_ context.Context, bucket string) (map[string][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyEntries(b.buckets[bucket]), nil
}

func (b *MemoryBackend) Replace(_ context.Context, bucket string, entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(entries) == 0 {
		delete(b.buckets, bucket)
		return nil
	}
	b.buckets[bucket] = copyEntries(entries)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

func copyEntries(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

var _ Backend = (*MemoryBackend)(nil)
