package ical

import (
	"io"
	"strings"
)

type frame struct {
	comp *Component
	line int
}

// Parse reads iCalendar text and returns the top-level components, normally
// a single VCALENDAR.
//
// Components of unknown kind are kept as KindUnknown. Properties are kept
// with their raw values whether or not they can be decoded.
func Parse(r io.Reader) ([]*Component, error) {
	var (
		roots []*Component
		stack []frame
	)

	s := NewLineScanner(r)
	for s.Scan() {
		line := s.Line()
		prop, err := parseContentLine(line)
		if err != nil {
			return nil, err
		}

		switch prop.Name {
		case "BEGIN":
			name := strings.ToUpper(strings.TrimSpace(prop.Value))
			if name == "" {
				return nil, errorf(line.Num, "BEGIN without component name")
			}
			comp := NewComponent(name)
			if err := checkNesting(comp, stack, line.Num); err != nil {
				return nil, err
			}
			stack = append(stack, frame{comp: comp, line: line.Num})

		case "END":
			name := strings.ToUpper(strings.TrimSpace(prop.Value))
			if name == "" {
				return nil, errorf(line.Num, "END without component name")
			}
			if len(stack) == 0 {
				return nil, errorf(line.Num, "END:%s without matching BEGIN", name)
			}
			top := stack[len(stack)-1]
			if top.comp.Name != name {
				return nil, errorf(line.Num, "END:%s does not match BEGIN:%s on line %d", name, top.comp.Name, top.line)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				roots = append(roots, top.comp)
			} else {
				parent := stack[len(stack)-1].comp
				parent.Children = append(parent.Children, top.comp)
			}

		default:
			if len(stack) == 0 {
				return nil, errorf(line.Num, "property %s outside of any component", prop.Name)
			}
			top := stack[len(stack)-1].comp
			top.Props = append(top.Props, prop)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, errorf(top.line, "missing END:%s", top.comp.Name)
	}

	return roots, nil
}

// ParseString is Parse for in-memory text.
func ParseString(text string) ([]*Component, error) {
	return Parse(strings.NewReader(text))
}

func checkNesting(comp *Component, stack []frame, line int) error {
	switch comp.Kind {
	case KindCalendar:
		if len(stack) > 0 {
			return errorf(line, "VCALENDAR nested inside %s", stack[len(stack)-1].comp.Name)
		}
	case KindEvent, KindTimezone:
		if len(stack) == 0 || stack[len(stack)-1].comp.Kind != KindCalendar {
			return errorf(line, "%s must be nested directly inside VCALENDAR", comp.Name)
		}
	}
	return nil
}

// parseContentLine splits "NAME;PARAM=VALUE:value" into a Property.
func parseContentLine(line Line) (*Property, error) {
	colon := indexUnquoted(line.Text, ':')
	if colon < 0 {
		return nil, errorf(line.Num, "missing ':' in content line %q", truncate(line.Text))
	}

	head, value := line.Text[:colon], line.Text[colon+1:]
	parts := splitUnquoted(head, ';')

	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	if name == "" {
		return nil, errorf(line.Num, "empty property name")
	}

	prop := &Property{Name: name, Value: value}
	for _, part := range parts[1:] {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return nil, errorf(line.Num, "malformed parameter %q on %s", part, name)
		}
		if prop.Params == nil {
			prop.Params = make(Params)
		}
		var values []string
		for _, v := range splitUnquoted(part[eq+1:], ',') {
			values = append(values, unquote(v))
		}
		prop.Params.Add(strings.TrimSpace(part[:eq]), values...)
	}

	return prop, nil
}

// indexUnquoted returns the index of the first sep outside double quotes.
func indexUnquoted(s string, sep byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				return i
			}
		}
	}
	return -1
}

// splitUnquoted splits s at every sep outside double quotes. Quotes are
// left in place.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	for {
		i := indexUnquoted(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+1:]
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
