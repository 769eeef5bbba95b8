package ical

import (
	"sort"
	"strings"

	goical "github.com/emersion/go-ical"
)

// Kind identifies the type of a component.
type Kind int

const (
	// KindUnknown is any component this package has no special knowledge
	// of, including X- extensions. The original tag is kept in Component.Name.
	KindUnknown Kind = iota
	KindCalendar
	KindEvent
	KindTimezone
	KindAlarm
)

var kindNames = map[string]Kind{
	goical.CompCalendar: KindCalendar,
	goical.CompEvent:    KindEvent,
	goical.CompTimezone: KindTimezone,
	goical.CompAlarm:    KindAlarm,
}

// KindOf returns the Kind for a component name such as "VEVENT".
func KindOf(name string) Kind {
	if k, ok := kindNames[strings.ToUpper(name)]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	switch k {
	case KindCalendar:
		return goical.CompCalendar
	case KindEvent:
		return goical.CompEvent
	case KindTimezone:
		return goical.CompTimezone
	case KindAlarm:
		return goical.CompAlarm
	default:
		return "unknown"
	}
}

// Component is a BEGIN/END block with its properties and nested
// components. Properties keep the order in which they appeared.
type Component struct {
	Kind     Kind
	Name     string
	Props    []*Property
	Children []*Component
}

// NewComponent creates an empty component with the given name.
func NewComponent(name string) *Component {
	name = strings.ToUpper(name)
	return &Component{Kind: KindOf(name), Name: name}
}

// Prop returns the first property with the given name, or nil.
func (c *Component) Prop(name string) *Property {
	name = strings.ToUpper(name)
	for _, p := range c.Props {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PropsNamed returns every property with the given name, in order.
func (c *Component) PropsNamed(name string) []*Property {
	name = strings.ToUpper(name)
	var out []*Property
	for _, p := range c.Props {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Add appends a property.
func (c *Component) Add(p *Property) {
	c.Props = append(c.Props, p)
}

// ChildrenOf returns the direct children of the given kind.
func (c *Component) ChildrenOf(kind Kind) []*Component {
	var out []*Component
	for _, child := range c.Children {
		if child.Kind == kind {
			out = append(out, child)
		}
	}
	return out
}

// Property is a single content line. Value is the raw, unfolded value
// text; use the typed accessors to decode it.
type Property struct {
	Name   string
	Params Params
	Value  string
}

// NewProperty creates a property with no parameters.
func NewProperty(name, value string) *Property {
	return &Property{Name: strings.ToUpper(name), Value: value}
}

// Params holds property parameters. Names are stored upper-cased and all
// accessors are case-insensitive.
type Params map[string][]string

// Get returns the first value of the named parameter, or "".
func (p Params) Get(name string) string {
	if v := p[strings.ToUpper(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of the named parameter.
func (p Params) Values(name string) []string {
	return p[strings.ToUpper(name)]
}

// Has reports whether the named parameter is present.
func (p Params) Has(name string) bool {
	_, ok := p[strings.ToUpper(name)]
	return ok
}

// Set replaces the values of the named parameter.
func (p Params) Set(name string, values ...string) {
	p[strings.ToUpper(name)] = values
}

// Add appends values to the named parameter.
func (p Params) Add(name string, values ...string) {
	name = strings.ToUpper(name)
	p[name] = append(p[name], values...)
}

// Del removes the named parameter.
func (p Params) Del(name string) {
	delete(p, strings.ToUpper(name))
}

func (p Params) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Params) clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}
