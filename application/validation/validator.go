// Package validation checks task descriptor documents in two passes: the
// JSON schema registered for descriptors, then the struct validation tags.
package validation

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/plughost/application/schema"
	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// DescriptorValidator implements ports.DescriptorValidator.
type DescriptorValidator struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
}

// NewDescriptorValidator compiles the descriptor schema held by registry.
func NewDescriptorValidator(registry ports.SchemaRegistry) (*DescriptorValidator, error) {
	kind := schema.KindTaskDescriptor
	src, ok := registry.GetSchema(kind)
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", kind)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(kind, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", kind, err)
	}
	sch, err := compiler.Compile(kind)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", kind, err)
	}

	return &DescriptorValidator{
		schema:   sch,
		validate: validator.New(),
	}, nil
}

// NewDefaultDescriptorValidator builds a validator over the default schemas.
func NewDefaultDescriptorValidator() (*DescriptorValidator, error) {
	registry, err := schema.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	return NewDescriptorValidator(registry)
}

// Validate parses data and checks it against the descriptor schema and tags.
func (v *DescriptorValidator) Validate(data []byte) (*entities.TaskDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.CodeParse, "failed to parse task descriptor", err)
	}
	if dec.More() {
		return nil, errors.New(errors.CodeParse, "failed to parse task descriptor: trailing data")
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "task descriptor does not match schema", err)
	}

	var desc entities.TaskDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(errors.CodeParse, "failed to decode task descriptor", err)
	}

	if err := v.validate.Struct(&desc); err != nil {
		field := ""
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Namespace()
		}
		return nil, errors.Wrap(errors.CodeValidation, "task descriptor validation failed",
			&errors.ConfigError{Field: field, Err: err})
	}

	return &desc, nil
}

var _ ports.DescriptorValidator = (*DescriptorValidator)(nil)
