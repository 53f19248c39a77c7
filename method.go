package reqflow

import "net/http"

// Method is an HTTP method supported by the pipeline.
type Method string

// Supported methods.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	default:
		return false
	}
}
