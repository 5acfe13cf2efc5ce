package ports

// SchemaRegistry manages JSON schemas for the documents the host accepts.
type SchemaRegistry interface {
	// Register adds a schema generated from a Go struct.
	Register(kind string, model any) error

	// GetSchema retrieves the JSON Schema registered for kind.
	GetSchema(kind string) (string, bool)

	// List returns all registered kinds, sorted.
	List() []string
}
