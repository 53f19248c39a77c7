package reqflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type (
	// DescriptorDoc is the serialized form of a [Descriptor], for JSON or
	// YAML files.
	DescriptorDoc struct {
		// BaseURL is required. Example: "https://api.example.com".
		BaseURL string `json:"base_url" yaml:"base_url"`
		// Path is appended to BaseURL. Example: "/todos/1".
		Path string `json:"path" yaml:"path"`
		// Method is case-insensitive. Default: "GET".
		Method string `json:"method,omitempty" yaml:"method,omitempty"`
		// Headers are sent verbatim.
		Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
		// Parameters is any JSON value; URL encoding needs an object.
		Parameters any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
		// Encoding is "url" or "json". Default: "url".
		Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
		// Retry overrides the default retry policy.
		Retry *RetryDoc `json:"retry,omitempty" yaml:"retry,omitempty"`
	}

	// RetryDoc is the serialized form of a [RetryPolicy]. Unset fields take
	// the [DefaultRetryPolicy] values.
	RetryDoc struct {
		// MaxRetries. Example: 3.
		MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
		// Delay is parsed via time.ParseDuration. Example: "500ms".
		Delay *string `json:"delay,omitempty" yaml:"delay,omitempty"`
		// TransientOnly restricts retries to [RetryTransient] failures.
		TransientOnly bool `json:"transient_only,omitempty" yaml:"transient_only,omitempty"`
	}
)

// LoadDescriptor reads a descriptor file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reqflow: read descriptor: %w", err)
	}

	var doc DescriptorDoc

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}

	if err != nil {
		return Descriptor{}, fmt.Errorf("reqflow: parse descriptor: %w", err)
	}

	return doc.Descriptor()
}

// Descriptor converts the document and validates the result.
func (s *DescriptorDoc) Descriptor() (Descriptor, error) {
	method := Method(strings.ToUpper(strings.TrimSpace(s.Method)))
	if method == "" {
		method = MethodGet
	}

	enc, err := ParseEncoding(s.Encoding)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reqflow: descriptor: %w", err)
	}

	d := Descriptor{
		BaseURL:    s.BaseURL,
		Path:       s.Path,
		Method:     method,
		Headers:    s.Headers,
		Parameters: s.Parameters,
		Encoding:   enc,
	}

	if s.Retry != nil {
		policy, retryErr := s.Retry.Policy()
		if retryErr != nil {
			return Descriptor{}, fmt.Errorf("reqflow: descriptor: %w", retryErr)
		}

		d.Retry = &policy
	}

	if err = d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("reqflow: descriptor: %w", err)
	}

	return d, nil
}

// Policy converts the document into a [RetryPolicy].
func (s *RetryDoc) Policy() (RetryPolicy, error) {
	p := DefaultRetryPolicy()

	if s.MaxRetries != nil {
		p.MaxRetries = *s.MaxRetries
	}

	if s.Delay != nil {
		d, err := time.ParseDuration(*s.Delay)
		if err != nil {
			return RetryPolicy{}, fmt.Errorf("retry.delay: %w", err)
		}

		p.Delay = d
	}

	if s.TransientOnly {
		p.ShouldRetry = RetryTransient
	}

	return p, nil
}
