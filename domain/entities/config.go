package entities

// LanguageAuto selects the language from the process locale.
const LanguageAuto = "auto"

// State backends.
const (
	StateBackendMemory = "memory"
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
)

// HostConfig is the host configuration file.
type HostConfig struct {
	Settings HostSettings `yaml:"settings" json:"settings"`
	State    StateConfig  `yaml:"state" json:"state"`
}

// HostSettings configures module discovery and instance limits.
type HostSettings struct {
	PluginsDirectory string `yaml:"plugins_directory" json:"plugins_directory" validate:"required"`
	Language         string `yaml:"language" json:"language" validate:"required,max=255"`
	MaxInstances     int    `yaml:"max_instances" json:"max_instances" validate:"gte=0"`
}

// StateConfig selects the host state store.
type StateConfig struct {
	Backend   string `yaml:"backend" json:"backend" validate:"oneof=memory file redis"`
	Path      string `yaml:"path" json:"path" validate:"required_if=Backend file"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Backend redis"`
}

// DefaultHostConfig returns the configuration used when no file is given.
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		Settings: HostSettings{
			PluginsDirectory: "plugins",
			Language:         LanguageAuto,
		},
		State: StateConfig{Backend: StateBackendMemory},
	}
}

// ResolveLanguage returns the configured language, consulting the process
// locale when it is "auto".
func (c *HostConfig) ResolveLanguage() Language {
	if c == nil || c.Settings.Language == "" || c.Settings.Language == LanguageAuto {
		return DetectSystemLanguage()
	}
	return ParseLanguage(c.Settings.Language)
}
