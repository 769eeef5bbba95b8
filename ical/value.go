package ical

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
)

// DateTime is a decoded DATE or DATE-TIME value.
//
// When UTC is set, Time is in time.UTC. When TZID is set and the zone could
// be resolved, Time is in that location. Otherwise Time carries the wall
// clock in time.UTC and TZID (possibly empty) names the zone it belongs to;
// an empty TZID without UTC means a floating local time.
type DateTime struct {
	Time     time.Time
	DateOnly bool
	UTC      bool
	TZID     string
	// Resolved reports whether TZID was mapped onto a time.Location.
	Resolved bool
}

// Floating reports whether the value is a date-time not bound to any zone.
func (d DateTime) Floating() bool {
	return !d.DateOnly && !d.UTC && d.TZID == ""
}

func (d DateTime) String() string {
	switch {
	case d.DateOnly:
		return d.Time.Format("2006-01-02")
	case d.UTC:
		return d.Time.Format(time.RFC3339)
	case d.TZID != "" && d.Resolved:
		return d.Time.Format(time.RFC3339) + " (" + d.TZID + ")"
	case d.TZID != "":
		return d.Time.Format("2006-01-02T15:04:05") + " (" + d.TZID + ")"
	default:
		return d.Time.Format("2006-01-02T15:04:05")
	}
}

// TimezoneResolver maps a TZID parameter onto a location.
type TimezoneResolver interface {
	Resolve(tzid string) (*time.Location, error)
}

// TimezoneResolverFunc adapts a function to TimezoneResolver.
type TimezoneResolverFunc func(tzid string) (*time.Location, error)

// Resolve calls f(tzid).
func (f TimezoneResolverFunc) Resolve(tzid string) (*time.Location, error) {
	return f(tzid)
}

// ZoneDatabase resolves IANA zone names with time.LoadLocation. Labels it
// does not know, such as Outlook's "(UTC-08:00) Pacific Time", stay
// unresolved.
var ZoneDatabase TimezoneResolver = TimezoneResolverFunc(func(tzid string) (*time.Location, error) {
	return time.LoadLocation(strings.Trim(tzid, "/"))
})

// ParseDateTime decodes a DATE or DATE-TIME value. params supplies the
// VALUE and TZID parameters; resolver may be nil.
func ParseDateTime(value string, params Params, resolver TimezoneResolver) (DateTime, error) {
	value = strings.TrimSpace(value)
	tzid := params.Get(goical.ParamTimezoneID)

	if strings.EqualFold(params.Get(goical.ParamValue), string(goical.ValueDate)) || len(value) == len(dateLayout) {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return DateTime{}, errorf(0, "invalid date %q", value)
		}
		return DateTime{Time: t, DateOnly: true, TZID: tzid}, nil
	}

	utc := strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z")
	if utc {
		if tzid != "" {
			return DateTime{}, errorf(0, "date-time %q is UTC but also has TZID=%s", value, tzid)
		}
		value = value[:len(value)-1]
	}

	t, err := time.Parse(dateTimeLayout, value)
	if err != nil {
		return DateTime{}, errorf(0, "invalid date-time %q", value)
	}

	dt := DateTime{Time: t, UTC: utc, TZID: tzid}
	if tzid != "" && resolver != nil {
		if loc, err := resolver.Resolve(tzid); err == nil && loc != nil {
			dt.Time = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
			dt.Resolved = true
		}
	}
	return dt, nil
}

// DateTime decodes the property as a DATE or DATE-TIME value.
func (p *Property) DateTime(resolver TimezoneResolver) (DateTime, error) {
	dt, err := ParseDateTime(p.Value, p.Params, resolver)
	if err != nil {
		return DateTime{}, fmt.Errorf("%s: %w", p.Name, err)
	}
	return dt, nil
}

// Text returns the property value with TEXT escapes removed.
func (p *Property) Text() string {
	return UnescapeText(p.Value)
}

// TextList splits a multi-valued TEXT property such as CATEGORIES.
func (p *Property) TextList() []string {
	items := SplitList(p.Value)
	for i, item := range items {
		items[i] = UnescapeText(item)
	}
	return items
}

// UnescapeText removes the backslash escapes allowed in TEXT values.
// Unknown escape sequences are kept as written.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case ',', ';', '\\':
			b.WriteByte(s[i])
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// EscapeText is the inverse of UnescapeText.
func EscapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)
	return r.Replace(s)
}

// SplitList splits a raw value on commas that are not escaped. Items keep
// their escapes.
func SplitList(s string) []string {
	var (
		items []string
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case ',':
			items = append(items, s[start:i])
			start = i + 1
		}
	}
	return append(items, s[start:])
}

// ParseDuration decodes an RFC 5545 duration such as "P1DT2H" or "-PT15M".
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	bad := func() (time.Duration, error) {
		return 0, errorf(0, "invalid duration %q", orig)
	}

	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return bad()
	}
	s = s[1:]

	var (
		total  time.Duration
		inTime bool
		seen   bool
	)
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime {
				return bad()
			}
			inTime = true
			s = s[1:]
			continue
		}

		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return bad()
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return bad()
		}

		var unit time.Duration
		switch s[i] {
		case 'W':
			unit = 7 * 24 * time.Hour
		case 'D':
			unit = 24 * time.Hour
		case 'H':
			unit = time.Hour
		case 'M':
			unit = time.Minute
		case 'S':
			unit = time.Second
		default:
			return bad()
		}
		if inTime != (s[i] == 'H' || s[i] == 'M' || s[i] == 'S') {
			return bad()
		}
		if int64(n) > (math.MaxInt64-int64(total))/int64(unit) {
			return 0, errorf(0, "duration %q out of range", orig)
		}
		total += time.Duration(n) * unit
		seen = true
		s = s[i+1:]
	}
	if !seen {
		return bad()
	}
	return sign * total, nil
}

// Value is a decoded property value. The concrete type is one of
// DateTime, TextValue, ListValue, DurationValue, IntegerValue or RawValue.
type Value interface {
	isValue()
}

// TextValue is an unescaped TEXT value.
type TextValue string

// ListValue is a multi-valued TEXT property, each item unescaped.
type ListValue []string

// DurationValue is a decoded DURATION.
type DurationValue time.Duration

// IntegerValue is an INTEGER value such as PRIORITY.
type IntegerValue int

// RawValue is a value this package does not interpret.
type RawValue string

func (DateTime) isValue()      {}
func (TextValue) isValue()     {}
func (ListValue) isValue()     {}
func (DurationValue) isValue() {}
func (RawValue) isValue()      {}
func (IntegerValue) isValue()  {}

var (
	dateTimeProps = map[string]bool{
		goical.PropDateTimeStart: true,
		goical.PropDateTimeEnd:   true,
		goical.PropRecurrenceID:  true,
		goical.PropDateTimeStamp: true,
		goical.PropCreated:       true,
		goical.PropLastModified:  true,
		goical.PropDue:           true,
		goical.PropCompleted:     true,
	}
	integerProps = map[string]bool{
		goical.PropPriority:        true,
		goical.PropPercentComplete: true,
		goical.PropSequence:        true,
	}
	textProps = map[string]bool{
		goical.PropSummary:     true,
		goical.PropDescription: true,
		goical.PropLocation:    true,
		goical.PropUID:         true,
		goical.PropComment:     true,
		goical.PropContact:     true,
	}
	listProps = map[string]bool{
		goical.PropCategories: true,
		goical.PropResources:  true,
	}
)

// DecodeValue decodes p according to its name. Properties without a known
// type come back as RawValue.
func DecodeValue(p *Property, resolver TimezoneResolver) (Value, error) {
	switch {
	case dateTimeProps[p.Name]:
		dt, err := p.DateTime(resolver)
		if err != nil {
			return nil, err
		}
		return dt, nil
	case textProps[p.Name]:
		return TextValue(p.Text()), nil
	case listProps[p.Name]:
		return ListValue(p.TextList()), nil
	case integerProps[p.Name]:
		n, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, errorf(0, "invalid integer %q", p.Value))
		}
		return IntegerValue(n), nil
	case p.Name == goical.PropDuration:
		d, err := ParseDuration(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		return DurationValue(d), nil
	default:
		return RawValue(p.Value), nil
	}
}
