package ports

import "github.com/reglet-dev/plughost/domain/entities"

// ConfigParser parses raw host configuration bytes.
type ConfigParser interface {
	// Parse unmarshals data into a HostConfig with defaults applied.
	Parse(data []byte) (*entities.HostConfig, error)
}
