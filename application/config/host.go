package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// ValidateHostConfig checks cfg against its validation tags.
func ValidateHostConfig(cfg *entities.HostConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var field string
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Namespace()
		}
		return &errors.ConfigError{Field: field, Err: err}
	}
	if lang := cfg.Settings.Language; lang != entities.LanguageAuto && !entities.Language(lang).IsValid() {
		return &errors.ConfigError{
			Field: "HostConfig.Settings.Language",
			Err:   fmt.Errorf("invalid language tag %q", lang),
		}
	}
	return nil
}

// LoadHostConfig reads, parses and validates the host configuration file.
// An empty path yields the default configuration.
func LoadHostConfig(path string, parser ports.ConfigParser) (*entities.HostConfig, error) {
	if path == "" {
		return entities.DefaultHostConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.CodeFileNotFound, "failed to read host config", err)
		}
		return nil, errors.Wrap(errors.CodeIO, "failed to read host config", err)
	}

	cfg, err := parser.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParse, "failed to parse host config", err)
	}

	if err := ValidateHostConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
