// Package abi provides the low-level memory conventions shared with plugin
// modules: packed pointer/length words and tracked allocations.
package abi

import (
	"fmt"
	"sync"
)

// MaxTotalAllocations is the default ceiling for bytes tracked by one Tracker.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// PtrHighBits is the shift applied to the pointer half of a packed word.
const PtrHighBits = 32

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Returns an error instead of panicking since the packed word comes from
// an untrusted module.
func UnpackPtrLen(packed uint64) (ptr, length uint32, err error) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		return 0, 0, fmt.Errorf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length)
	}
	return ptr, length, nil
}

// PackVersion packs major.minor.patch into major<<16 | minor<<8 | patch.
func PackVersion(major uint16, minor, patch uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(patch)
}

// UnpackVersion reverses PackVersion.
func UnpackVersion(packed uint32) (major uint16, minor, patch uint8) {
	return uint16(packed >> 16), uint8(packed >> 8), uint8(packed)
}

// MemoryError reports an allocation that would exceed the tracker limit.
type MemoryError struct {
	Requested int
	Current   int
	Limit     int
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
		e.Requested, e.Current, e.Limit)
}

// Tracker accounts for outstanding allocations handed across the boundary.
// Release is idempotent: untracked ids are ignored, which turns a double
// free into a no-op.
type Tracker struct {
	sizes map[uint64]int
	mu    sync.Mutex
	next  uint64
	total int
	limit int
}

// NewTracker creates a Tracker that refuses allocations past limit bytes.
// A non-positive limit selects MaxTotalAllocations.
func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = MaxTotalAllocations
	}
	return &Tracker{
		sizes: make(map[uint64]int),
		limit: limit,
	}
}

// Track records an allocation of size bytes and returns its id.
func (t *Tracker) Track(size int) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total+size > t.limit {
		return 0, &MemoryError{Requested: size, Current: t.total, Limit: t.limit}
	}
	t.next++
	t.sizes[t.next] = size
	t.total += size
	return t.next, nil
}

// Release forgets id and reports whether it was still tracked.
func (t *Tracker) Release(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	size, ok := t.sizes[id]
	if !ok {
		return false
	}
	delete(t.sizes, id)
	t.total -= size
	if t.total < 0 {
		t.total = 0
	}
	return true
}

// Outstanding returns the number of live allocations.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sizes)
}

// TotalBytes returns the bytes currently tracked.
func (t *Tracker) TotalBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
