package caldav

import (
	"strings"

	"github.com/jooooscha/minicaldav/ical"
)

// Calendar is a calendar collection found during discovery.
type Calendar struct {
	// URL is the absolute URL of the collection and identifies it.
	URL         string
	DisplayName string
	// CTag changes whenever anything in the collection changes. Empty when
	// the server does not support it.
	CTag        string
	Color       string
	Description string
	// Components lists the supported component types, e.g. VEVENT and
	// VTODO. Nil when the server did not say.
	Components []string
}

// Name returns the display name, or the URL when there is none.
func (c Calendar) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.URL
}

// Supports reports whether the calendar can hold components of the given
// type. A calendar that did not advertise its component set supports all.
func (c Calendar) Supports(component string) bool {
	if c.Components == nil {
		return true
	}
	for _, comp := range c.Components {
		if strings.EqualFold(comp, component) {
			return true
		}
	}
	return false
}

// Event is one VEVENT from a calendar object resource. A resource holding
// a recurring event with overrides yields several Events sharing Href and
// ETag.
type Event struct {
	// Href is the absolute URL of the resource the event came from.
	Href string
	ETag string
	ical.Event
}

// Todo is one VTODO from a calendar object resource.
type Todo struct {
	Href string
	ETag string
	ical.Todo
}
