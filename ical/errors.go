package ical

import (
	"errors"
	"fmt"
)

// ErrMissingUID is returned when a VEVENT or VTODO has no UID property.
var ErrMissingUID = errors.New("ical: component has no UID")

// FormatError reports malformed iCalendar input.
type FormatError struct {
	// Line is the physical line on which the problem was found, or 0 when
	// the error is not tied to a line (e.g. a bad property value).
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ical: line %d: %s", e.Line, e.Msg)
	}
	return "ical: " + e.Msg
}

func errorf(line int, format string, args ...interface{}) *FormatError {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
