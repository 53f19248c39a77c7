package reqflow

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Descriptor describes one logical HTTP call as data. A descriptor is
// built by the caller and never modified by the pipeline; the retry policy
// and encoding stay fixed for every attempt of a single call.
//
// Optional fields default as follows: Headers empty, Parameters absent,
// Encoding [EncodingURL], Retry [DefaultRetryPolicy].
type Descriptor struct {
	// BaseURL is the absolute URL the path is appended to.
	BaseURL string
	// Path is appended to BaseURL without further validation.
	Path string
	// Method is the HTTP method.
	Method Method
	// Headers are sent verbatim.
	Headers map[string]string
	// Parameters is any value the encoder can serialize. Nil means no
	// parameters.
	Parameters any
	// Encoding selects query-string or JSON-body encoding.
	Encoding Encoding
	// Retry overrides the default retry policy when non-nil.
	Retry *RetryPolicy
}

// RetryPolicy returns the effective retry policy.
func (d Descriptor) RetryPolicy() RetryPolicy {
	if d.Retry == nil {
		return DefaultRetryPolicy()
	}

	return d.Retry.normalized()
}

// WithHeaders returns a copy of d whose headers are extra overlaid by d's
// own headers. Keys are compared and stored in canonical form, so
// "x-request-id" in d overrides "X-Request-Id" in extra. The receiver's map
// is left untouched.
func (d Descriptor) WithHeaders(extra map[string]string) Descriptor {
	if len(extra) == 0 {
		return d
	}

	merged := make(map[string]string, len(extra)+len(d.Headers))
	for k, v := range extra {
		merged[http.CanonicalHeaderKey(k)] = v
	}

	for k, v := range d.Headers {
		merged[http.CanonicalHeaderKey(k)] = v
	}

	d.Headers = merged

	return d
}

// Validate reports programmer errors in the descriptor: an unsupported
// method, a base URL that is not absolute, or a negative retry setting.
func (d Descriptor) Validate() error {
	var errs []error

	if !d.Method.Valid() {
		errs = append(errs, fmt.Errorf("unsupported method %q", d.Method))
	}

	u, err := url.Parse(d.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base url: %w", err))
	case !u.IsAbs() || u.Host == "":
		errs = append(errs, fmt.Errorf("base url %q is not absolute", d.BaseURL))
	}

	if d.Encoding != EncodingURL && d.Encoding != EncodingJSON {
		errs = append(errs, fmt.Errorf("unsupported encoding %s", d.Encoding))
	}

	if d.Retry != nil {
		if d.Retry.MaxRetries < 0 {
			errs = append(errs, errors.New("retry: max retries must not be negative"))
		}

		if d.Retry.Delay < 0 {
			errs = append(errs, errors.New("retry: delay must not be negative"))
		}
	}

	return errors.Join(errs...)
}
