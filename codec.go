package reqflow

import (
	"bytes"
	"errors"
	"io"

	json "github.com/goccy/go-json"
)

// Encoder serializes request parameters. Implementations must produce
// JSON: URL encoding flattens the top-level JSON object into query items.
type Encoder interface {
	Marshal(v any) ([]byte, error)
}

// Decoder turns a success body into the value pointed to by v.
type Decoder interface {
	Decode(data []byte, v any) error
}

// DecoderFunc adapts a plain function into a [Decoder].
type DecoderFunc func(data []byte, v any) error

// Decode calls the underlying function.
func (f DecoderFunc) Decode(data []byte, v any) error { return f(data, v) }

// JSONCodec is the default [Encoder] and [Decoder].
//
// Fields missing from the body keep their zero value; use a
// [SchemaDecoder] with "required" when absent keys must fail.
type JSONCodec struct {
	// DisallowUnknownFields rejects bodies with fields the target type does
	// not declare.
	DisallowUnknownFields bool
}

// Marshal encodes v as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v) //nolint:wrapcheck // wrapped by the builder
}

// errTrailingData reports content after the first JSON document.
var errTrailingData = errors.New("unexpected data after JSON document")

// Decode decodes a single JSON document from data into v. An empty body or
// anything but whitespace after the document is an error.
func (c JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if c.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err //nolint:wrapcheck // wrapped as a parsing error
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	return nil
}
