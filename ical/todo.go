package ical

import (
	"fmt"
	"strconv"
	"strings"

	goical "github.com/emersion/go-ical"
)

// Todo is the decoded form of a VTODO. VTODO has no Kind of its own; it is
// recognized by name.
type Todo struct {
	UID          string
	Summary      string
	Description  string
	Categories   []string
	Start        *DateTime
	Due          *DateTime
	Completed    *DateTime
	RecurrenceID *DateTime
	// Status is the STATUS value, e.g. NEEDS-ACTION or COMPLETED.
	Status string
	// Priority ranges from 1 (highest) to 9; 0 means undefined.
	Priority int
	// PercentComplete is -1 when the property is absent.
	PercentComplete int

	Component *Component
}

// IsTodo reports whether c is a VTODO.
func IsTodo(c *Component) bool {
	return strings.EqualFold(c.Name, goical.CompToDo)
}

// DecodeTodo builds a Todo from a VTODO component. UID is required. When
// DUE is missing and DURATION is present, Due is derived from Start.
func DecodeTodo(c *Component, resolver TimezoneResolver) (*Todo, error) {
	if !IsTodo(c) {
		return nil, fmt.Errorf("ical: cannot decode %s as to-do", c.Name)
	}

	td := &Todo{Component: c, PercentComplete: -1}

	if p := c.Prop(goical.PropUID); p != nil {
		td.UID = strings.TrimSpace(p.Text())
	}
	if td.UID == "" {
		return nil, ErrMissingUID
	}

	if p := c.Prop(goical.PropSummary); p != nil {
		td.Summary = p.Text()
	}
	if p := c.Prop(goical.PropDescription); p != nil {
		td.Description = p.Text()
	}
	if p := c.Prop(goical.PropStatus); p != nil {
		td.Status = strings.ToUpper(strings.TrimSpace(p.Value))
	}
	for _, p := range c.PropsNamed(goical.PropCategories) {
		td.Categories = append(td.Categories, p.TextList()...)
	}

	var err error
	if td.Priority, err = optionalInt(c, goical.PropPriority, 0); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}
	if td.PercentComplete, err = optionalInt(c, goical.PropPercentComplete, -1); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}

	if td.Start, err = optionalDateTime(c, goical.PropDateTimeStart, resolver); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}
	if td.Due, err = optionalDateTime(c, goical.PropDue, resolver); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}
	if td.Completed, err = optionalDateTime(c, goical.PropCompleted, resolver); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}
	if td.RecurrenceID, err = optionalDateTime(c, goical.PropRecurrenceID, resolver); err != nil {
		return nil, fmt.Errorf("to-do %s: %w", td.UID, err)
	}

	if td.Due == nil && td.Start != nil {
		if p := c.Prop(goical.PropDuration); p != nil {
			d, err := ParseDuration(strings.TrimSpace(p.Value))
			if err != nil {
				return nil, fmt.Errorf("to-do %s: %s: %w", td.UID, p.Name, err)
			}
			due := *td.Start
			due.Time = due.Time.Add(d)
			td.Due = &due
		}
	}

	return td, nil
}

func optionalInt(c *Component, name string, def int) (int, error) {
	p := c.Prop(name)
	if p == nil {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, errorf(0, "invalid integer %q", p.Value))
	}
	return n, nil
}

// Todos decodes every VTODO of every VCALENDAR in the forest, in order.
// The first to-do that fails to decode aborts the whole call.
func Todos(forest []*Component, resolver TimezoneResolver) ([]Todo, error) {
	var todos []Todo
	for _, cal := range forest {
		if cal.Kind != KindCalendar {
			continue
		}
		for _, child := range cal.Children {
			if !IsTodo(child) {
				continue
			}
			td, err := DecodeTodo(child, resolver)
			if err != nil {
				return nil, err
			}
			todos = append(todos, *td)
		}
	}
	return todos, nil
}
