package value

import (
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/reglet-dev/plughost/internal/abi"
)

// Allocator hands out pooled, tracked buffers whose free capability
// returns them to the pool. One Allocator is owned by one runtime or
// module; there is no package-level pool.
type Allocator struct {
	tracker *abi.Tracker
	pool    bytebufferpool.Pool
}

type allocatorConfig struct {
	limit int
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*allocatorConfig)

// WithLimit caps the bytes that may be outstanding at once.
func WithLimit(bytes int) AllocatorOption {
	return func(c *allocatorConfig) {
		c.limit = bytes
	}
}

// NewAllocator creates an Allocator.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	cfg := allocatorConfig{limit: abi.MaxTotalAllocations}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Allocator{tracker: abi.NewTracker(cfg.limit)}
}

func (a *Allocator) acquire(b []byte) (*bytebufferpool.ByteBuffer, uint64, error) {
	id, err := a.tracker.Track(len(b))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to allocate %d bytes: %w", len(b), err)
	}
	buf := a.pool.Get()
	_, _ = buf.Write(b)
	return buf, id, nil
}

func (a *Allocator) release(buf *bytebufferpool.ByteBuffer, id uint64) {
	if a.tracker.Release(id) {
		a.pool.Put(buf)
	}
}

// Buffer copies b into a pooled buffer value.
func (a *Allocator) Buffer(b []byte) (Value, error) {
	buf, id, err := a.acquire(b)
	if err != nil {
		return Value{}, err
	}
	return Buffer(buf.B).WithFree(func(*Value) { a.release(buf, id) }), nil
}

// String copies s into a pooled string value.
func (a *Allocator) String(s string) (Value, error) {
	buf, id, err := a.acquire([]byte(s))
	if err != nil {
		return Value{}, err
	}
	v := Value{kind: KindString, data: buf.B, size: len(buf.B)}
	return v.WithFree(func(*Value) { a.release(buf, id) }), nil
}

// Text copies s into a pooled, terminated Text.
func (a *Allocator) Text(s string) (Text, error) {
	t := NewText(s)
	buf, id, err := a.acquire(t.buf)
	if err != nil {
		return Text{}, err
	}
	return Text{buf: buf.B}.WithFree(func([]byte) { a.release(buf, id) }), nil
}

// Outstanding returns the number of allocations not yet released.
func (a *Allocator) Outstanding() int { return a.tracker.Outstanding() }

// OutstandingBytes returns the bytes not yet released.
func (a *Allocator) OutstandingBytes() int { return a.tracker.TotalBytes() }
