package reqflow

// Class is the outcome category of an HTTP status code.
type Class int

const (
	// ClassSuccess covers 200-299; the body is decoded.
	ClassSuccess Class = iota
	// ClassClientError covers 400-499.
	ClassClientError
	// ClassServerError covers 500-599.
	ClassServerError
	// ClassUnexpected covers every other code.
	ClassUnexpected
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassClientError:
		return "client_error"
	case ClassServerError:
		return "server_error"
	default:
		return "unexpected"
	}
}

// Classify maps an HTTP status code to its [Class]. Ranges are inclusive.
func Classify(status int) Class {
	switch {
	case status >= 200 && status <= 299:
		return ClassSuccess
	case status >= 400 && status <= 499:
		return ClassClientError
	case status >= 500 && status <= 599:
		return ClassServerError
	default:
		return ClassUnexpected
	}
}

// classifyAndDecode decodes a success body into v or returns the error for
// the response's class. Error statuses never inspect the body.
func classifyAndDecode(resp *RawResponse, dec Decoder, v any) error {
	switch Classify(resp.StatusCode) {
	case ClassSuccess:
		if err := dec.Decode(resp.Body, v); err != nil {
			return parsingError(err)
		}

		return nil
	case ClassClientError:
		return statusError(ErrClientError, resp.StatusCode)
	case ClassServerError:
		return statusError(ErrServerError, resp.StatusCode)
	default:
		return statusError(ErrUnexpected, resp.StatusCode)
	}
}
