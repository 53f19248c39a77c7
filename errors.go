package reqflow

import (
	"errors"
	"strconv"
	"strings"
)

type (
	// ErrorKind names one member of the closed error taxonomy. The kinds
	// are themselves errors so that callers can write
	// errors.Is(err, reqflow.ErrClientError).
	ErrorKind string

	// ErrorContext carries the diagnostic details attached to an [Error].
	// It is plain data and is never mutated after construction.
	ErrorContext struct {
		// UserMessage is a human readable summary suitable for display.
		UserMessage string
		// StatusCode is the HTTP status that triggered the error. Zero means
		// the failure did not originate from an HTTP response.
		StatusCode int
		// ErrorDescription is a diagnostic description for logs.
		ErrorDescription string
		// UnderlyingError is the wrapped cause, if any.
		UnderlyingError error
	}

	// Error is the terminal error value returned by the pipeline.
	Error struct {
		Kind    ErrorKind
		Context ErrorContext
	}
)

// Error kinds.
const (
	ErrInvalidURL         ErrorKind = "invalid url"
	ErrSerialization      ErrorKind = "serialization error"
	ErrClientError        ErrorKind = "client error"
	ErrServerError        ErrorKind = "server error"
	ErrInvalidResponse    ErrorKind = "invalid response"
	ErrParsing            ErrorKind = "parsing error"
	ErrNetworkUnavailable ErrorKind = "network unavailable"
	ErrRequestTimeout     ErrorKind = "request timeout"
	ErrNetworkFailed      ErrorKind = "network failed"
	ErrUnexpected         ErrorKind = "unexpected error"
	ErrMaxRetriesExceeded ErrorKind = "max retries exceeded"
	ErrRetryFailed        ErrorKind = "retry failed"
)

func (k ErrorKind) Error() string { return string(k) }

// HasStatus reports whether the context carries an HTTP status code.
func (c ErrorContext) HasStatus() bool { return c.StatusCode != 0 }

// GenericContext returns the context used when nothing more specific is
// known about a failure.
func GenericContext() ErrorContext {
	return ErrorContext{
		UserMessage: "An unexpected error occurred. Please try again.",
	}
}

// NewError returns an [Error] of the given kind.
func NewError(kind ErrorKind, ctx ErrorContext) *Error {
	return &Error{Kind: kind, Context: ctx}
}

// NetworkFailed wraps a raw transport failure without altering it.
func NetworkFailed(cause error) *Error {
	return &Error{
		Kind: ErrNetworkFailed,
		Context: ErrorContext{
			UserMessage:      "Network request failed",
			ErrorDescription: "The transport could not complete the request",
			UnderlyingError:  cause,
		},
	}
}

// Error formats the kind, status, description and cause.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("reqflow: ")
	b.WriteString(string(e.Kind))

	if e.Context.HasStatus() {
		b.WriteString(" (status ")
		b.WriteString(strconv.Itoa(e.Context.StatusCode))
		b.WriteByte(')')
	}

	if e.Context.ErrorDescription != "" {
		b.WriteString(": ")
		b.WriteString(e.Context.ErrorDescription)
	}

	if e.Context.UnderlyingError != nil {
		b.WriteString(": ")
		b.WriteString(e.Context.UnderlyingError.Error())
	}

	return b.String()
}

// Unwrap exposes the underlying cause. For [ErrMaxRetriesExceeded] this is
// the last attempt's error, so errors.Is still finds the original kind.
func (e *Error) Unwrap() error { return e.Context.UnderlyingError }

// Is matches e against an [ErrorKind].
func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)

	return ok && kind == e.Kind
}

// StatusCode returns the HTTP status carried by the error, or zero.
func (e *Error) StatusCode() int { return e.Context.StatusCode }

// AsError returns the outermost [*Error] in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// KindOf returns the kind of the outermost [*Error] in err's chain, or the
// empty kind when err carries none.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}

	return ""
}

// isBuildFailure reports whether err was produced while building the
// request. Those failures are deterministic and never retried.
func isBuildFailure(err error) bool {
	switch KindOf(err) {
	case ErrInvalidURL, ErrSerialization:
		return true
	default:
		return false
	}
}

func invalidURLError(desc string, cause error) *Error {
	return &Error{
		Kind: ErrInvalidURL,
		Context: ErrorContext{
			UserMessage:      "Invalid URL",
			ErrorDescription: desc,
			UnderlyingError:  cause,
		},
	}
}

func serializationError(cause error) *Error {
	return &Error{
		Kind: ErrSerialization,
		Context: ErrorContext{
			UserMessage:      "Failed to encode request parameters",
			ErrorDescription: "Error occurred during request serialization",
			UnderlyingError:  cause,
		},
	}
}

func parsingError(cause error) *Error {
	return &Error{
		Kind: ErrParsing,
		Context: ErrorContext{
			UserMessage:      "Failed to parse server response",
			ErrorDescription: "Error occurred while parsing the response",
			UnderlyingError:  cause,
		},
	}
}

func invalidResponseError() *Error {
	return &Error{
		Kind: ErrInvalidResponse,
		Context: ErrorContext{
			UserMessage:      "Invalid server response",
			ErrorDescription: "The server response was not an HTTP response",
		},
	}
}

func statusError(kind ErrorKind, status int) *Error {
	ctx := ErrorContext{StatusCode: status}

	switch kind {
	case ErrClientError:
		ctx.UserMessage = "Request failed"
		ctx.ErrorDescription = "The server returned a client error"
	case ErrServerError:
		ctx.UserMessage = "Server error occurred"
		ctx.ErrorDescription = "The server returned a server error"
	default:
		ctx.UserMessage = "An unexpected error occurred"
		ctx.ErrorDescription = "Received an unexpected status code"
	}

	return &Error{Kind: kind, Context: ctx}
}

func maxRetriesError(maxRetries int, last error) *Error {
	return &Error{
		Kind: ErrMaxRetriesExceeded,
		Context: ErrorContext{
			UserMessage: "The operation couldn't be completed after multiple attempts. " +
				"Please try again later.",
			ErrorDescription: "Maximum number of retries (" +
				strconv.Itoa(maxRetries) + ") exceeded",
			UnderlyingError: last,
		},
	}
}

func retryFailedError(cause error) *Error {
	return &Error{
		Kind: ErrRetryFailed,
		Context: ErrorContext{
			UserMessage:      "An error occurred while retrying the operation. Please try again.",
			ErrorDescription: "Retry wait was interrupted",
			UnderlyingError:  cause,
		},
	}
}
