package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequest matches every error returned by Client.Request for a failed
// call, whether the transport broke or the server answered non-2xx.
var ErrRequest = errors.New("request failed")

// TransportError is a DNS, connect, timeout or body read failure.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrRequest }

// HTTPStatusError is a response with a status outside 2xx.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HTTPStatusError) Is(target error) bool { return target == ErrRequest }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
