package entities

// Default texts for plugins that publish no translation.
const (
	DefaultPluginName        = "Unnamed Plugin"
	DefaultPluginDescription = "No description"
)

// BasicInfo summarizes one instance for manager listings.
type BasicInfo struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Version        Version    `json:"version"`
	Instance       InstanceID `json:"instance"`
	SupportedTypes Capability `json:"supported_types"`
	UUID           UUID       `json:"uuid"`
}

// DetailedInfo is the document returned by a manager's detailed info query.
type DetailedInfo struct {
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Path               string     `json:"path"`
	Version            string     `json:"version"`
	SDKVersion         string     `json:"sdk_version"`
	UUID               string     `json:"uuid"`
	Capabilities       []string   `json:"capabilities"`
	ThreadRequirements []string   `json:"thread_requirements"`
	Instance           InstanceID `json:"instance"`
	SupportedTypes     Capability `json:"supported_types"`
	Loaded             bool       `json:"loaded"`
	Initialized        bool       `json:"initialized"`
	ThreadSafe         bool       `json:"thread_safe"`
}

// Candidate is what a matcher sees of one instance.
type Candidate struct {
	Name           string
	InputFormats   []string
	OutputFormats  []string
	Instance       InstanceID
	SupportedTypes Capability
	UUID           UUID
	ThreadSafe     bool
}
