package ical

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// maxLineOctets is the folding limit from RFC 5545 section 3.1, excluding
// the line break.
const maxLineOctets = 75

// Encoder writes components as iCalendar text.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes c and its children. Lines end in CRLF and are folded at 75
// octets. Property values are written as they are stored.
func (e *Encoder) Encode(c *Component) error {
	e.component(c)
	return e.w.Flush()
}

func (e *Encoder) component(c *Component) {
	e.line("BEGIN:" + c.Name)
	for _, p := range c.Props {
		e.line(formatProperty(p))
	}
	for _, child := range c.Children {
		e.component(child)
	}
	e.line("END:" + c.Name)
}

func (e *Encoder) line(s string) {
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		e.w.WriteString(s[:cut])
		e.w.WriteString("\r\n ")
		s = s[cut:]
		// The leading space of a continuation line counts against the limit.
		limit = maxLineOctets - 1
	}
	e.w.WriteString(s)
	e.w.WriteString("\r\n")
}

func formatProperty(p *Property) string {
	var b strings.Builder
	b.WriteString(p.Name)
	for _, name := range p.Params.names() {
		b.WriteByte(';')
		b.WriteString(name)
		b.WriteByte('=')
		for i, v := range p.Params[name] {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(v, ":;,") {
				b.WriteByte('"')
				b.WriteString(v)
				b.WriteByte('"')
			} else {
				b.WriteString(v)
			}
		}
	}
	b.WriteByte(':')
	b.WriteString(p.Value)
	return b.String()
}

// Encode renders a component forest as a string.
func Encode(forest []*Component) (string, error) {
	var b strings.Builder
	enc := NewEncoder(&b)
	for _, c := range forest {
		if err := enc.Encode(c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
