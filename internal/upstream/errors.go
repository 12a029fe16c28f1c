package upstream

import "fmt"

// NetworkError means the request failed before a response arrived.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-success HTTP status or an explicit error field in
// an otherwise successful payload. Status is 200 in the latter case.
type ServerError struct {
	URL     string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.URL, e.Status, e.Message)
}

// MalformedPayloadError means the response did not match the expected shape.
type MalformedPayloadError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: malformed payload: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream %s: malformed payload: %s", e.URL, e.Reason)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
