package ical

import (
	"sort"

	goical "github.com/emersion/go-ical"
)

// ICal converts c into a go-ical component tree.
func (c *Component) ICal() *goical.Component {
	out := &goical.Component{
		Name:  c.Name,
		Props: make(goical.Props),
	}
	for _, p := range c.Props {
		out.Props[p.Name] = append(out.Props[p.Name], goical.Prop{
			Name:   p.Name,
			Params: goical.Params(p.Params.clone()),
			Value:  p.Value,
		})
	}
	for _, child := range c.Children {
		out.Children = append(out.Children, child.ICal())
	}
	return out
}

// FromICal converts a go-ical component tree. go-ical does not keep the
// order of differently named properties, so they come back sorted by name.
func FromICal(gc *goical.Component) *Component {
	c := NewComponent(gc.Name)

	names := make([]string, 0, len(gc.Props))
	for name := range gc.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, p := range gc.Props[name] {
			prop := &Property{Name: p.Name, Value: p.Value}
			if len(p.Params) > 0 {
				prop.Params = make(Params, len(p.Params))
				for k, v := range p.Params {
					prop.Params.Set(k, append([]string(nil), v...)...)
				}
			}
			c.Add(prop)
		}
	}

	for _, child := range gc.Children {
		c.Children = append(c.Children, FromICal(child))
	}
	return c
}
