package reqflow

import (
	"fmt"
	"strings"
)

// Encoding selects where request parameters are serialized.
type Encoding int

const (
	// EncodingURL appends parameters to the URL as query items.
	EncodingURL Encoding = iota
	// EncodingJSON serializes parameters into a JSON request body.
	EncodingJSON
)

// String returns the lowercase encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingURL:
		return "url"
	case EncodingJSON:
		return "json"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding parses "url" or "json". The empty string yields
// [EncodingURL].
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "url", "query":
		return EncodingURL, nil
	case "json", "body":
		return EncodingJSON, nil
	default:
		return EncodingURL, fmt.Errorf("unknown encoding %q", s)
	}
}

// EncodingStrategy decides how a descriptor's parameters are encoded. It
// must be total: every descriptor yields an encoding.
//
// Pattern: Strategy. Callers override the decision (e.g. force JSON for a
// GET) without touching the builder.
type EncodingStrategy interface {
	DetermineEncoding(d Descriptor) Encoding
}

// EncodingFunc adapts a plain function into an [EncodingStrategy].
type EncodingFunc func(d Descriptor) Encoding

// DetermineEncoding calls the underlying function.
func (f EncodingFunc) DetermineEncoding(d Descriptor) Encoding { return f(d) }

// StandardEncoding returns the descriptor's declared encoding.
type StandardEncoding struct{}

// DetermineEncoding returns d.Encoding.
func (StandardEncoding) DetermineEncoding(d Descriptor) Encoding { return d.Encoding }

// ForceEncoding returns a strategy that ignores the descriptor and always
// picks e.
func ForceEncoding(e Encoding) EncodingStrategy {
	return EncodingFunc(func(Descriptor) Encoding { return e })
}
