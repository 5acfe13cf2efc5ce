package entities

import (
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// Capability is a 64-bit capability mask. A single set bit names one
// capability; a module declares the union of the capabilities it supports.
type Capability uint64

const (
	CapabilityNone Capability = 0

	// Execution protocols and roles.
	CapabilitySingleTask Capability = 1 << 0
	CapabilityAsyncTask  Capability = 1 << 1
	CapabilityResident   Capability = 1 << 2
	CapabilityState      Capability = 1 << 3
	CapabilityManager    Capability = 1 << 4
	CapabilityDataInput  Capability = 1 << 5
	CapabilityDataOutput Capability = 1 << 6
	CapabilityWindow     Capability = 1 << 7

	// Media, storage and security.
	CapabilityImage      Capability = 1 << 8
	CapabilityAudio      Capability = 1 << 9
	CapabilityVideo      Capability = 1 << 10
	CapabilityFileSystem Capability = 1 << 11
	CapabilityDatabase   Capability = 1 << 12
	CapabilityEncryption Capability = 1 << 13

	// Networking.
	CapabilityHTTPClient       Capability = 1 << 20
	CapabilityHTTPServer       Capability = 1 << 21
	CapabilityTCPClient        Capability = 1 << 22
	CapabilityTCPServer        Capability = 1 << 23
	CapabilityUDP              Capability = 1 << 24
	CapabilityWebSocket        Capability = 1 << 25
	CapabilityFileSharing      Capability = 1 << 26
	CapabilityServiceDiscovery Capability = 1 << 27

	// Reserved for future protocols.
	CapabilityStreaming  Capability = 1 << 28
	CapabilityMessaging  Capability = 1 << 29
	CapabilityBlockchain Capability = 1 << 30
	CapabilityIoT        Capability = 1 << 31

	// CapabilityUserDefinedStart is the first bit plugins may assign freely.
	CapabilityUserDefinedStart Capability = 1 << 32

	// CapabilityReserved must never be set.
	CapabilityReserved Capability = 1 << 63
)

var capabilityNames = map[Capability]string{
	CapabilitySingleTask:       "single_task",
	CapabilityAsyncTask:        "async_task",
	CapabilityResident:         "resident",
	CapabilityState:            "state",
	CapabilityManager:          "manager",
	CapabilityDataInput:        "data_input",
	CapabilityDataOutput:       "data_output",
	CapabilityWindow:           "window",
	CapabilityImage:            "image",
	CapabilityAudio:            "audio",
	CapabilityVideo:            "video",
	CapabilityFileSystem:       "filesystem",
	CapabilityDatabase:         "database",
	CapabilityEncryption:       "encryption",
	CapabilityHTTPClient:       "http_client",
	CapabilityHTTPServer:       "http_server",
	CapabilityTCPClient:        "tcp_client",
	CapabilityTCPServer:        "tcp_server",
	CapabilityUDP:              "udp",
	CapabilityWebSocket:        "websocket",
	CapabilityFileSharing:      "file_sharing",
	CapabilityServiceDiscovery: "service_discovery",
	CapabilityStreaming:        "streaming",
	CapabilityMessaging:        "messaging",
	CapabilityBlockchain:       "blockchain",
	CapabilityIoT:              "iot",
}

var capabilityByName = func() map[string]Capability {
	m := make(map[string]Capability, len(capabilityNames))
	for c, name := range capabilityNames {
		m[name] = c
	}
	// Category aliases used by task descriptors.
	m["http"] = CapabilityHTTPClient
	m["tcp"] = CapabilityTCPClient
	m["fs"] = CapabilityFileSystem
	m["file"] = CapabilityFileSystem
	return m
}()

// Has reports whether every bit of other is set in c.
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

// Intersects reports whether c and other share a bit.
func (c Capability) Intersects(other Capability) bool {
	return c&other != 0
}

// IsSingle reports whether c names exactly one capability.
func (c Capability) IsSingle() bool {
	return bits.OnesCount64(uint64(c)) == 1
}

// IsValid reports whether c avoids the reserved bit.
func (c Capability) IsValid() bool {
	return c&CapabilityReserved == 0
}

// IsUserDefined reports whether c is a single bit in the user-defined range.
func (c Capability) IsUserDefined() bool {
	return c.IsSingle() && c >= CapabilityUserDefinedStart && c != CapabilityReserved
}

// Bits splits c into its single-bit capabilities, lowest first.
func (c Capability) Bits() []Capability {
	out := make([]Capability, 0, bits.OnesCount64(uint64(c)))
	for rest := uint64(c); rest != 0; rest &= rest - 1 {
		out = append(out, Capability(uint64(1)<<bits.TrailingZeros64(rest)))
	}
	return out
}

// Names returns the names of the bits in c. User-defined bits render as
// "user_<bit>", the reserved bit as "reserved".
func (c Capability) Names() []string {
	parts := c.Bits()
	names := make([]string, 0, len(parts))
	for _, b := range parts {
		names = append(names, b.name())
	}
	return names
}

func (c Capability) name() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	if c == CapabilityReserved {
		return "reserved"
	}
	if c >= CapabilityUserDefinedStart {
		return "user_" + strconv.Itoa(bits.TrailingZeros64(uint64(c)))
	}
	return "bit_" + strconv.Itoa(bits.TrailingZeros64(uint64(c)))
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

// ParseCapability resolves a capability or category name. Names are
// case-insensitive and accept '-' in place of '_'.
func ParseCapability(name string) (Capability, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	c, ok := capabilityByName[key]
	return c, ok
}

// KnownCapabilityNames returns every named capability, sorted.
func KnownCapabilityNames() []string {
	names := make([]string, 0, len(capabilityNames))
	for _, name := range capabilityNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
