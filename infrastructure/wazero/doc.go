// Package wazero runs WebAssembly plugin modules through the wazero
// runtime. It provides two things:
//
//   - HostModule, which exports every function of a
//     hostfuncs.Registry as a host module, moving JSON payloads
//     across guest memory in the packed i64 pointer+length format.
//   - Opener, a ports.LibraryOpener that compiles and instantiates a .wasm
//     file and resolves the plugin entry points from its exports.
//
// # Basic Usage
//
//	opener, err := wazero.NewOpener(ctx)
//	if err != nil {
//	    return err
//	}
//	defer opener.Close(ctx)
//
//	lib, err := opener.Open(ctx, "plugins/resize.wasm")
//
// A guest instance is single-threaded: every call into a module is
// serialized by the library, and wasm plugins always report that they are
// not thread safe.
package wazero
