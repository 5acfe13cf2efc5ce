// Package host is the plugin runtime: it loads module libraries, creates
// and tracks plugin instances, binds their capability tables and
// dispatches every call into them.
//
// A Runtime owns one instance registry, one manager hierarchy and one UI
// thread. Modules come from a ports.LibraryOpener; the default multi-opener
// serves statically registered modules first, then WebAssembly modules
// through wazero and Go plugins through the standard plugin package.
//
// Every call into an instance takes the same path. A non-thread-safe
// instance is entered by one goroutine at a time, an instance that needs
// the UI thread runs on the runtime's UI goroutine, panics become
// ThreadPanic results, and each call is traced and counted.
package host
