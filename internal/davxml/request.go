package davxml

import (
	"encoding/xml"
	"strings"
	"time"
)

// Namespaces used in requests and responses.
const (
	NamespaceDAV            = "DAV:"
	NamespaceCalDAV         = "urn:ietf:params:xml:ns:caldav"
	NamespaceCalendarServer = "http://calendarserver.org/ns/"
	NamespaceAppleICal      = "http://apple.com/ns/ical/"
)

// Property names a request can ask for. Values are the prefixed element
// names written into the request body.
type Property string

const (
	PropDisplayName          Property = "D:displayname"
	PropResourceType         Property = "D:resourcetype"
	PropETag                 Property = "D:getetag"
	PropCurrentUserPrincipal Property = "D:current-user-principal"
	PropCTag                 Property = "CS:getctag"
	PropCalendarHomeSet      Property = "C:calendar-home-set"
	PropCalendarData         Property = "C:calendar-data"
	PropCalendarDescription  Property = "C:calendar-description"
	PropSupportedComponents  Property = "C:supported-calendar-component-set"
	PropCalendarColor        Property = "A:calendar-color"
)

// Elements are marshalled with literal prefixes; the namespaces are
// declared once on the root element.
type namespaces struct {
	D  string `xml:"xmlns:D,attr"`
	C  string `xml:"xmlns:C,attr"`
	CS string `xml:"xmlns:CS,attr"`
	A  string `xml:"xmlns:A,attr"`
}

func defaultNamespaces() namespaces {
	return namespaces{
		D:  NamespaceDAV,
		C:  NamespaceCalDAV,
		CS: NamespaceCalendarServer,
		A:  NamespaceAppleICal,
	}
}

type emptyElement struct {
	XMLName xml.Name
}

type propElement struct {
	Props []emptyElement
}

func (p propElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "D:prop"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range p.Props {
		name := xml.StartElement{Name: child.XMLName}
		if err := e.EncodeToken(name); err != nil {
			return err
		}
		if err := e.EncodeToken(name.End()); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func newProp(props []Property) propElement {
	p := propElement{}
	for _, name := range props {
		p.Props = append(p.Props, emptyElement{XMLName: xml.Name{Local: string(name)}})
	}
	return p
}

type propfind struct {
	XMLName xml.Name `xml:"D:propfind"`
	namespaces
	Prop propElement `xml:"D:prop"`
}

type timeRange struct {
	Start string `xml:"start,attr,omitempty"`
	End   string `xml:"end,attr,omitempty"`
}

type compFilter struct {
	Name      string       `xml:"name,attr"`
	TimeRange *timeRange   `xml:"C:time-range,omitempty"`
	Comps     []compFilter `xml:"C:comp-filter,omitempty"`
}

type filter struct {
	Comp compFilter `xml:"C:comp-filter"`
}

type calendarQuery struct {
	XMLName xml.Name `xml:"C:calendar-query"`
	namespaces
	Prop   propElement `xml:"D:prop"`
	Filter filter      `xml:"C:filter"`
}

type calendarMultiget struct {
	XMLName xml.Name `xml:"C:calendar-multiget"`
	namespaces
	Prop  propElement `xml:"D:prop"`
	Hrefs []string    `xml:"D:href"`
}

// timeRangeLayout is the UTC date-time form CalDAV requires in time-range.
const timeRangeLayout = "20060102T150405Z"

// NewPropfind returns a PROPFIND body asking for props.
func NewPropfind(props ...Property) ([]byte, error) {
	return marshal(propfind{namespaces: defaultNamespaces(), Prop: newProp(props)})
}

// NewCalendarQuery returns a calendar-query REPORT body selecting every
// VEVENT inside a VCALENDAR. When start or end is non-zero the VEVENT
// filter carries a time-range.
func NewCalendarQuery(start, end time.Time, props ...Property) ([]byte, error) {
	return NewComponentQuery("VEVENT", start, end, props...)
}

// NewComponentQuery is NewCalendarQuery for any component type inside a
// VCALENDAR, such as VTODO.
func NewComponentQuery(component string, start, end time.Time, props ...Property) ([]byte, error) {
	comp := compFilter{Name: strings.ToUpper(component)}
	if !start.IsZero() || !end.IsZero() {
		comp.TimeRange = &timeRange{}
		if !start.IsZero() {
			comp.TimeRange.Start = start.UTC().Format(timeRangeLayout)
		}
		if !end.IsZero() {
			comp.TimeRange.End = end.UTC().Format(timeRangeLayout)
		}
	}

	return marshal(calendarQuery{
		namespaces: defaultNamespaces(),
		Prop:       newProp(props),
		Filter: filter{Comp: compFilter{
			Name:  "VCALENDAR",
			Comps: []compFilter{comp},
		}},
	})
}

// NewCalendarMultiget returns a calendar-multiget REPORT body for hrefs.
func NewCalendarMultiget(hrefs []string, props ...Property) ([]byte, error) {
	return marshal(calendarMultiget{
		namespaces: defaultNamespaces(),
		Prop:       newProp(props),
		Hrefs:      hrefs,
	})
}

func marshal(v interface{}) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
