// Package entities provides the core domain types of the plugin host:
// capability bits, module versions, language tags, task requests and
// results, and the descriptors exchanged with managers.
// They carry no behavior beyond validation and small helpers.
package entities
