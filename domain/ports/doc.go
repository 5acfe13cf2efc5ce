// Package ports defines the contracts between the host runtime and the
// outside world: the libraries modules are loaded from, the plugin objects
// they create, the capability interfaces those objects implement and the
// services the host offers back to them.
//
// Domain logic depends on these abstractions; the host, the plugin SDK and
// the infrastructure adapters implement them.
package ports
