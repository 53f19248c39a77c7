package reqflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
)

const contentTypeJSON = "application/json"

// BuiltRequest is the transport-ready form of a descriptor. It is derived
// for one attempt and discarded after the transport call.
type BuiltRequest struct {
	URL    *url.URL
	Method string
	Header http.Header
	Body   []byte
}

// NewHTTPRequest converts r into an [*http.Request] bound to ctx.
func (r *BuiltRequest) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("reqflow: new http request: %w", err)
	}

	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	return req, nil
}

// Clone returns a deep copy of r.
func (r *BuiltRequest) Clone() *BuiltRequest {
	u := *r.URL

	return &BuiltRequest{
		URL:    &u,
		Method: r.Method,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
	}
}

// RequestBuilder turns a descriptor into a [BuiltRequest]. Failures are
// [ErrInvalidURL] or [ErrSerialization] errors.
type RequestBuilder interface {
	Build(d Descriptor) (*BuiltRequest, error)
}

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithEncodingStrategy overrides the strategy that picks URL or JSON
// encoding.
func WithEncodingStrategy(s EncodingStrategy) BuilderOption {
	return func(b *Builder) {
		b.strategy = s
	}
}

// WithEncoder overrides the parameter encoder.
func WithEncoder(e Encoder) BuilderOption {
	return func(b *Builder) {
		b.encoder = e
	}
}

// Builder is the standard [RequestBuilder]. It is stateless after
// construction and safe for concurrent use.
type Builder struct {
	strategy EncodingStrategy
	encoder  Encoder
}

// NewBuilder returns a builder using [StandardEncoding] and [JSONCodec]
// unless overridden.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		strategy: StandardEncoding{},
		encoder:  JSONCodec{},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build resolves the URL, copies method and headers, and encodes the
// parameters when present.
func (b *Builder) Build(d Descriptor) (*BuiltRequest, error) {
	u, err := resolveURL(d.BaseURL, d.Path)
	if err != nil {
		return nil, err
	}

	req := &BuiltRequest{
		URL:    u,
		Method: string(d.Method),
		Header: make(http.Header, len(d.Headers)),
	}

	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	if isAbsent(d.Parameters) {
		return req, nil
	}

	switch b.strategy.DetermineEncoding(d) {
	case EncodingJSON:
		return b.encodeJSON(req, d.Parameters)
	default:
		return b.encodeURL(req, d.Parameters)
	}
}

func (b *Builder) encodeJSON(req *BuiltRequest, params any) (*BuiltRequest, error) {
	data, err := b.encoder.Marshal(params)
	if err != nil {
		return nil, serializationError(err)
	}

	req.Body = data
	req.Header.Set("Content-Type", contentTypeJSON)

	return req, nil
}

// encodeURL goes through the JSON form of params and appends each member of
// the top-level object as a query item after any query already in the base
// URL. A non-object value adds nothing.
func (b *Builder) encodeURL(req *BuiltRequest, params any) (*BuiltRequest, error) {
	data, err := b.encoder.Marshal(params)
	if err != nil {
		return nil, serializationError(err)
	}

	if !gjson.ValidBytes(data) {
		return nil, serializationError(errors.New("encoder produced invalid JSON"))
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return req, nil
	}

	if _, err := url.ParseQuery(req.URL.RawQuery); err != nil {
		return nil, serializationError(err)
	}

	query := make(url.Values)

	doc.ForEach(func(key, value gjson.Result) bool {
		query.Add(key.String(), queryValue(value))
		return true
	})

	// existing items stay verbatim; only the new ones are encoded
	if encoded := query.Encode(); encoded != "" {
		if req.URL.RawQuery == "" {
			req.URL.RawQuery = encoded
		} else {
			req.URL.RawQuery += "&" + encoded
		}
	}

	return req, nil
}

func queryValue(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Null:
		return ""
	default:
		// numbers keep their literal form; objects and arrays stay JSON
		return v.Raw
	}
}

func resolveURL(base, path string) (*url.URL, error) {
	if base == "" {
		return nil, invalidURLError("The base URL is empty", nil)
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, invalidURLError("The URL provided was invalid", err)
	}

	if !u.IsAbs() || u.Host == "" {
		return nil, invalidURLError("The base URL "+base+" is not absolute", nil)
	}

	if path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
		u.RawPath = ""
	}

	return u, nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
