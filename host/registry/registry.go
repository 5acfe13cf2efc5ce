// Package registry tracks live plugin instances behind generation-tagged
// handles. A handle stays invalid forever once its instance is removed:
// the slot may be reused, but with a bumped generation.
package registry

import (
	"sort"
	"sync"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	maxInstances int
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{}
}

// Option configures a Registry instance.
type Option func(*registryConfig)

// WithMaxInstances caps the number of live instances. Zero means no limit.
func WithMaxInstances(n int) Option {
	return func(c *registryConfig) {
		c.maxInstances = n
	}
}

type slot[T any] struct {
	payload    T
	owner      any
	generation uint32
	live       bool
}

// Registry maps instance ids to payloads of type T. Each entry records an
// owner (the module it was created from) so live counts can be taken per
// owner. It is safe for concurrent use.
type Registry[T any] struct {
	mu     sync.RWMutex
	slots  []slot[T]
	free   []uint32
	counts map[any]int
	config registryConfig
	live   int
}

// New creates an empty registry.
func New[T any](opts ...Option) *Registry[T] {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	// Slot 0 is never handed out so that no id is zero.
	return &Registry[T]{
		config: cfg,
		slots:  make([]slot[T], 1),
		counts: make(map[any]int),
	}
}

func makeID(index, generation uint32) entities.InstanceID {
	return entities.InstanceID(uint64(generation)<<32 | uint64(index))
}

// Insert stores payload under a fresh id and increments owner's live count.
func (r *Registry[T]) Insert(owner any, payload T) (entities.InstanceID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.maxInstances > 0 && r.live >= r.config.maxInstances {
		return 0, errors.Newf(errors.CodeResourceExhausted, "instance limit %d reached", r.config.maxInstances)
	}

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		index = uint32(len(r.slots) - 1)
	}

	s := &r.slots[index]
	s.generation++
	s.payload = payload
	s.owner = owner
	s.live = true

	r.live++
	r.counts[owner]++
	return makeID(index, s.generation), nil
}

// lookup returns the live slot for id. The caller holds r.mu.
func (r *Registry[T]) lookup(id entities.InstanceID) (*slot[T], bool) {
	index := id.Slot()
	if index == 0 || int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if !s.live || s.generation != id.Generation() {
		return nil, false
	}
	return s, true
}

// Get returns the payload stored under id.
func (r *Registry[T]) Get(id entities.InstanceID) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lookup(id)
	if !ok {
		var zero T
		return zero, errors.ErrInvalidHandle
	}
	return s.payload, nil
}

// Remove deletes id and returns its payload. The id is stale afterwards.
func (r *Registry[T]) Remove(id entities.InstanceID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s, ok := r.lookup(id)
	if !ok {
		return zero, errors.ErrInvalidHandle
	}

	payload := s.payload
	if r.counts[s.owner]--; r.counts[s.owner] <= 0 {
		delete(r.counts, s.owner)
	}
	s.payload = zero
	s.owner = nil
	s.live = false
	r.live--
	r.free = append(r.free, id.Slot())
	return payload, nil
}

// IsAlive reports whether id names a live entry.
func (r *Registry[T]) IsAlive(id entities.InstanceID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lookup(id)
	return ok
}

// LiveCount returns the number of live entries inserted with owner.
func (r *Registry[T]) LiveCount(owner any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[owner]
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// IDs returns every live id in ascending order.
func (r *Registry[T]) IDs() []entities.InstanceID {
	r.mu.RLock()
	ids := make([]entities.InstanceID, 0, r.live)
	for i := 1; i < len(r.slots); i++ {
		if s := &r.slots[i]; s.live {
			ids = append(ids, makeID(uint32(i), s.generation))
		}
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Range calls fn for each live entry in ascending id order, stopping when
// fn returns false. fn runs without the registry lock held.
func (r *Registry[T]) Range(fn func(id entities.InstanceID, payload T) bool) {
	for _, id := range r.IDs() {
		payload, err := r.Get(id)
		if err != nil {
			continue
		}
		if !fn(id, payload) {
			return
		}
	}
}
