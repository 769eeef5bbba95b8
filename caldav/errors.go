package caldav

import (
	"errors"
	"fmt"
)

// ErrMissingCalendarData is wrapped by a ResourceError when the server
// returned a resource without calendar-data.
var ErrMissingCalendarData = errors.New("caldav: resource has no calendar-data")

// ErrNoComponent is wrapped by a ResourceError when the calendar-data of a
// resource parsed but held none of the requested components.
var ErrNoComponent = errors.New("caldav: calendar-data holds no matching component")

// TransportError reports a request that failed on the network or returned
// an unexpected HTTP status.
type TransportError struct {
	Method string
	URL    string
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caldav: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("caldav: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError reports rejected credentials (HTTP 401 or 403), or a token
// source that could not produce a token.
type AuthError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caldav: %s %s: authentication failed: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("caldav: %s %s: authentication failed with status %d", e.Method, e.URL, e.StatusCode)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FormatError reports a response body that is not a valid multistatus
// document.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("caldav: %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ResourceError reports a single calendar object that could not be turned
// into events. StatusCode is the per-resource status from the multistatus
// response; Err is set when the status was fine but the payload was not.
type ResourceError struct {
	Href       string
	StatusCode int
	Err        error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caldav: resource %s: %v", e.Href, e.Err)
	}
	return fmt.Sprintf("caldav: resource %s: status %d", e.Href, e.StatusCode)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
