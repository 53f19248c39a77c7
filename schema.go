package reqflow

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaDecoder validates a body against a JSON schema before handing it to
// the next decoder. A body that violates the schema becomes a parsing error
// like any other decode failure.
type SchemaDecoder struct {
	schema *jsonschema.Schema
	next   Decoder
}

// CompileSchema compiles a JSON schema document registered under name.
func CompileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("reqflow: add schema %q: %w", name, err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("reqflow: compile schema %q: %w", name, err)
	}

	return schema, nil
}

// NewSchemaDecoder wraps next with schema validation. A nil next uses
// [JSONCodec].
func NewSchemaDecoder(schema *jsonschema.Schema, next Decoder) *SchemaDecoder {
	if next == nil {
		next = JSONCodec{}
	}

	return &SchemaDecoder{schema: schema, next: next}
}

// Decode validates data and then decodes it with the wrapped decoder.
func (d *SchemaDecoder) Decode(data []byte, v any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	if err := d.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	return d.next.Decode(data, v) //nolint:wrapcheck // wrapped as a parsing error
}
