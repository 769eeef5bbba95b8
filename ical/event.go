package ical

import (
	"fmt"
	"strings"

	goical "github.com/emersion/go-ical"
)

// Event is the decoded form of a VEVENT.
type Event struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Categories   []string
	Start        *DateTime
	End          *DateTime
	RecurrenceID *DateTime

	// Component is the VEVENT the event was decoded from, with every
	// property, including the ones not mapped onto fields above.
	Component *Component
	// Timezones are the VTIMEZONEs of the VCALENDAR the event came from.
	// They are set by Events, not by DecodeEvent.
	Timezones []*Component
}

// DecodeEvent builds an Event from a VEVENT component.
//
// UID is required. DTSTART and DTEND are optional; when DTEND is missing
// and DURATION is present, End is derived from Start.
func DecodeEvent(c *Component, resolver TimezoneResolver) (*Event, error) {
	if c.Kind != KindEvent {
		return nil, fmt.Errorf("ical: cannot decode %s as event", c.Name)
	}

	ev := &Event{Component: c}

	if p := c.Prop(goical.PropUID); p != nil {
		ev.UID = strings.TrimSpace(p.Text())
	}
	if ev.UID == "" {
		return nil, ErrMissingUID
	}

	if p := c.Prop(goical.PropSummary); p != nil {
		ev.Summary = p.Text()
	}
	if p := c.Prop(goical.PropDescription); p != nil {
		ev.Description = p.Text()
	}
	if p := c.Prop(goical.PropLocation); p != nil {
		ev.Location = p.Text()
	}
	for _, p := range c.PropsNamed(goical.PropCategories) {
		ev.Categories = append(ev.Categories, p.TextList()...)
	}

	var err error
	if ev.Start, err = optionalDateTime(c, goical.PropDateTimeStart, resolver); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.UID, err)
	}
	if ev.End, err = optionalDateTime(c, goical.PropDateTimeEnd, resolver); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.UID, err)
	}
	if ev.RecurrenceID, err = optionalDateTime(c, goical.PropRecurrenceID, resolver); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.UID, err)
	}

	if ev.End == nil && ev.Start != nil {
		if p := c.Prop(goical.PropDuration); p != nil {
			d, err := ParseDuration(strings.TrimSpace(p.Value))
			if err != nil {
				return nil, fmt.Errorf("event %s: %s: %w", ev.UID, p.Name, err)
			}
			end := *ev.Start
			end.Time = end.Time.Add(d)
			ev.End = &end
		}
	}

	return ev, nil
}

func optionalDateTime(c *Component, name string, resolver TimezoneResolver) (*DateTime, error) {
	p := c.Prop(name)
	if p == nil {
		return nil, nil
	}
	dt, err := p.DateTime(resolver)
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

// Events decodes every VEVENT of every VCALENDAR in the forest, in order.
// Recurrence overrides sharing a UID are returned as separate events. The
// first event that fails to decode aborts the whole call.
func Events(forest []*Component, resolver TimezoneResolver) ([]Event, error) {
	var events []Event
	for _, cal := range forest {
		if cal.Kind != KindCalendar {
			continue
		}
		timezones := cal.ChildrenOf(KindTimezone)
		for _, child := range cal.ChildrenOf(KindEvent) {
			ev, err := DecodeEvent(child, resolver)
			if err != nil {
				return nil, err
			}
			ev.Timezones = timezones
			events = append(events, *ev)
		}
	}
	return events, nil
}
