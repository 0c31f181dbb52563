// Package ormerr defines the error kinds raised by model inspection, code
// generation, schema push, and runtime query execution. Every kind carries a
// distinct Category value so callers can pattern-match on it, plus a
// structured Context map and a human-readable message naming the model and
// (where applicable) the column or relation involved.
package ormerr

import "fmt"

// Category identifies which phase of the pipeline raised an error.
type Category string

const (
	// Model-time, raised by inspect/codegen.
	CategoryUnknownModelReference Category = "UNKNOWN_MODEL_REFERENCE"
	CategoryAmbiguousForeignKey   Category = "AMBIGUOUS_FOREIGN_KEY"
	CategoryMissingPrimaryKey     Category = "MISSING_PRIMARY_KEY"
	CategoryDuplicateTable        Category = "DUPLICATE_TABLE"
	CategoryProbeError            Category = "PROBE_ERROR"

	// Schema-time, raised by dialect/push.
	CategorySchemaInference Category = "SCHEMA_INFERENCE_ERROR"
	CategoryRebuildRejected Category = "REBUILD_REJECTED"
	CategoryUnsupportedProvider Category = "UNSUPPORTED_PROVIDER"

	// Query-time, raised by where/runtime.
	CategoryInvalidFilter         Category = "INVALID_FILTER"
	CategoryIntegrityViolation    Category = "INTEGRITY_VIOLATION"
	CategoryNoSuchTable           Category = "NO_SUCH_TABLE"
	CategoryRelationUnresolvable  Category = "RELATION_UNRESOLVABLE"
	CategoryConnectionUsageError  Category = "CONNECTION_USAGE_ERROR"
	CategoryConnectionClosed      Category = "CONNECTION_CLOSED"
)

// Error is the single error type raised throughout the core. Category lets a
// caller pattern-match programmatically; Context carries structured detail
// (model name, column name, relation name, ...) alongside the message.
type Error struct {
	Category Category
	Model    string
	Column   string
	Relation string
	Message  string
	Context  map[string]any
}

func (e *Error) Error() string {
	switch {
	case e.Model != "" && e.Column != "":
		return fmt.Sprintf("%s: %s.%s: %s", e.Category, e.Model, e.Column, e.Message)
	case e.Model != "" && e.Relation != "":
		return fmt.Sprintf("%s: %s.%s: %s", e.Category, e.Model, e.Relation, e.Message)
	case e.Model != "":
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Model, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
}

// New builds an Error for the given category with a formatted message.
func New(cat Category, model string, format string, args ...any) *Error {
	return &Error{Category: cat, Model: model, Message: fmt.Sprintf(format, args...)}
}

// WithColumn attaches a column name to the error, returning the same error
// for chaining at the call site.
func (e *Error) WithColumn(name string) *Error {
	e.Column = name
	return e
}

// WithRelation attaches a relation name to the error.
func (e *Error) WithRelation(name string) *Error {
	e.Relation = name
	return e
}

// WithContext merges key/value pairs into the structured context map.
func (e *Error) WithContext(kv map[string]any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Context[k] = v
	}
	return e
}
