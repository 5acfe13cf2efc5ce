package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UUID identifies a module file. Every instance created from the same
// module shares it; it is not a per-instance identity.
type UUID = uuid.UUID

// NilUUID is the all-zero UUID, never a valid module identity.
var NilUUID = uuid.Nil

// ParseUUID parses the canonical textual UUID form.
func ParseUUID(s string) (UUID, error) {
	return uuid.Parse(s)
}

// InstanceID is an opaque, generation-tagged instance handle. The low 32
// bits select a registry slot, the high 32 bits carry the slot generation.
// The zero id is never issued and denotes the host itself.
type InstanceID uint64

// RootInstance is the id of the host acting as the root manager.
const RootInstance InstanceID = 0

// Slot returns the registry slot index.
func (id InstanceID) Slot() uint32 { return uint32(id) }

// Generation returns the slot generation.
func (id InstanceID) Generation() uint32 { return uint32(id >> 32) }

func (id InstanceID) String() string {
	if id == RootInstance {
		return "host"
	}
	return fmt.Sprintf("%d@%d", id.Slot(), id.Generation())
}

// Version is a semantic version with the boundary's fixed field widths.
type Version struct {
	Major uint16 `json:"major" yaml:"major"`
	Minor uint8  `json:"minor" yaml:"minor"`
	Patch uint8  `json:"patch" yaml:"patch"`
}

// NewVersion builds a Version.
func NewVersion(major uint16, minor, patch uint8) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion parses "major.minor.patch". Missing minor or patch parts
// default to zero.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	limits := []int{16, 8, 8}
	var fields [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, limits[i])
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		fields[i] = n
	}
	return NewVersion(uint16(fields[0]), uint8(fields[1]), uint8(fields[2])), nil
}

// MustParseVersion is ParseVersion that panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 ordering v against other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmp(int(v.Major), int(other.Major))
	case v.Minor != other.Minor:
		return cmp(int(v.Minor), int(other.Minor))
	default:
		return cmp(int(v.Patch), int(other.Patch))
	}
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsCompatibleWith reports whether a module targeting v can run on a host
// at host. Only the major version must match; minor and patch differences
// are backward compatible.
func (v Version) IsCompatibleWith(host Version) bool {
	return v.Major == host.Major
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// SDKVersion is the plugin ABI version this module implements. Modules
// report the version they were built against; the host accepts only the
// same major version.
var SDKVersion = NewVersion(1, 0, 0)
