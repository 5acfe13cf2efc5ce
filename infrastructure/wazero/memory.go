package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/plughost/internal/abi"
	"github.com/reglet-dev/plughost/value"
)

// Guest memory management exports.
const (
	exportAllocate   = "allocate"
	exportDeallocate = "deallocate"
)

// writeGuest copies data into memory obtained from the guest allocator and
// returns the guest pointer.
func writeGuest(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	allocateFn := mod.ExportedFunction(exportAllocate)
	if allocateFn == nil {
		return 0, fmt.Errorf("guest module missing %q export", exportAllocate)
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate: %w", err)
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 && len(data) > 0 {
		return 0, fmt.Errorf("guest allocate returned null for %d bytes", len(data))
	}

	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at %#x out of guest memory range", len(data), ptr)
	}
	return ptr, nil
}

// readGuest copies the bytes named by a packed pointer+length word out of
// guest memory.
func readGuest(mod api.Module, packed uint64) ([]byte, error) {
	ptr, length, err := abi.UnpackPtrLen(packed)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %#x out of guest memory range", length, ptr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// readGuestPooled is readGuest copying into a buffer from alloc. The
// caller releases the returned value.
func readGuestPooled(mod api.Module, packed uint64, alloc *value.Allocator) (value.Value, error) {
	ptr, length, err := abi.UnpackPtrLen(packed)
	if err != nil {
		return value.Null(), err
	}
	if length == 0 {
		return value.Null(), nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return value.Null(), fmt.Errorf("read %d bytes at %#x out of guest memory range", length, ptr)
	}
	return alloc.Buffer(data)
}

// freeGuest returns memory to the guest allocator when it exports one.
func freeGuest(ctx context.Context, mod api.Module, ptr, size uint32) {
	if ptr == 0 {
		return
	}
	if fn := mod.ExportedFunction(exportDeallocate); fn != nil {
		_, _ = fn.Call(ctx, uint64(ptr), uint64(size))
	}
}
