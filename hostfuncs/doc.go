// Package hostfuncs implements the functions the host exposes to wasm
// guests, independent of any wasm runtime. Handlers exchange JSON bytes;
// the runtime adapter in infrastructure/wazero moves those bytes across
// guest memory. Handlers reach the calling instance's host services
// through the context.
package hostfuncs
