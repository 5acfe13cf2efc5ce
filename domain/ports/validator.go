package ports

import "github.com/reglet-dev/plughost/domain/entities"

// DescriptorValidator checks task descriptor documents.
type DescriptorValidator interface {
	// Validate parses data and checks it against the descriptor schema.
	// Malformed JSON is reported with errors.CodeParse, a well-formed but
	// invalid document with errors.CodeValidation.
	Validate(data []byte) (*entities.TaskDescriptor, error)
}
