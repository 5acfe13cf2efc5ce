package entities

// TaskDescriptor is the structured document a manager matches plugins
// against. Unknown fields are allowed and ignored by the default policy.
type TaskDescriptor struct {
	// Parameters are task arguments, opaque to the host.
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"description=Task arguments passed through to the plugin"`

	// Constraints narrow the candidate set.
	Constraints *TaskConstraints `json:"constraints,omitempty"`

	// Action names the protocol the caller intends to use.
	Action string `json:"action" validate:"required,max=64" jsonschema:"description=Requested operation such as execute or execute_async,minLength=1"`

	// Category names a capability such as "image" or "http".
	Category string `json:"category,omitempty" validate:"max=64" jsonschema:"description=Capability category of the task"`

	// InputFormat is a hint such as "text/plain".
	InputFormat string `json:"input_format,omitempty" validate:"max=128"`

	// OutputFormat is a hint such as "application/json".
	OutputFormat string `json:"output_format,omitempty" validate:"max=128"`

	// Priority orders competing work, 0 (lowest) to 100.
	Priority int `json:"priority,omitempty" validate:"gte=0,lte=100" jsonschema:"minimum=0,maximum=100"`
}

// TaskConstraints restrict which instances may serve a descriptor.
type TaskConstraints struct {
	// ThreadSafe, when set, requires instances with that thread-safety flag.
	ThreadSafe *bool `json:"thread_safe,omitempty"`

	// Capabilities lists capability names every candidate must declare.
	Capabilities []string `json:"capabilities,omitempty" validate:"dive,required"`

	// Exclude lists instance ids to skip.
	Exclude []uint64 `json:"exclude,omitempty"`

	// Language is the preferred language for the result.
	Language string `json:"language,omitempty" validate:"max=255"`
}
