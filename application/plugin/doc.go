// Package plugin is the module-side SDK. A module defines itself with
// DefineModule, embeds Base in its plugin type for localized names and
// host access, and may serve the async capability through AsyncRunner.
package plugin
