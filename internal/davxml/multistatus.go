// Package davxml builds WebDAV/CalDAV request bodies and parses the
// multistatus responses servers send back.
package davxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatError reports a response body that is not a well-formed
// multistatus document.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid multistatus body: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Multistatus is a parsed 207 Multi-Status body.
type Multistatus struct {
	Responses []Response
}

// Response is the outcome for one resource.
type Response struct {
	Href string
	// Status is the HTTP status code for the resource, 0 if the server sent
	// a status line that could not be parsed.
	Status int
	// Props holds the properties found in successful propstats only.
	Props Props
}

// OK reports whether Status is 2xx.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Props are the properties this package understands. A nil field means
// the server did not return the property successfully.
type Props struct {
	DisplayName          *string
	CTag                 *string
	ETag                 *string
	CalendarData         *string
	CurrentUserPrincipal *string
	CalendarHomeSet      *string
	CalendarColor        *string
	CalendarDescription  *string
	// ResourceType lists the local names of the resourcetype children, e.g.
	// "collection" and "calendar". Nil when resourcetype was not returned.
	ResourceType []string
	// SupportedComponents lists the comp names of
	// supported-calendar-component-set. Nil when not returned.
	SupportedComponents []string
}

// IsCalendar reports whether the resource type contains "calendar".
func (p Props) IsCalendar() bool {
	for _, t := range p.ResourceType {
		if t == "calendar" {
			return true
		}
	}
	return false
}

// SupportsComponent reports whether name is in the supported component set.
// Servers that do not advertise a set support everything.
func (p Props) SupportsComponent(name string) bool {
	if p.SupportedComponents == nil {
		return true
	}
	for _, c := range p.SupportedComponents {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// The decode structs match on local names only so that any namespace
// prefix a server picks is accepted.
type multistatusDecode struct {
	XMLName   xml.Name         `xml:"multistatus"`
	Responses []responseDecode `xml:"response"`
}

type responseDecode struct {
	Hrefs     []string         `xml:"href"`
	Status    *string          `xml:"status"`
	Propstats []propstatDecode `xml:"propstat"`
}

type propstatDecode struct {
	Prop   propDecode `xml:"prop"`
	Status string     `xml:"status"`
}

type propDecode struct {
	DisplayName          *string             `xml:"displayname"`
	CTag                 *string             `xml:"getctag"`
	ETag                 *string             `xml:"getetag"`
	CalendarData         *string             `xml:"calendar-data"`
	CurrentUserPrincipal *hrefDecode         `xml:"current-user-principal"`
	CalendarHomeSet      *hrefDecode         `xml:"calendar-home-set"`
	CalendarColor        *string             `xml:"calendar-color"`
	CalendarDescription  *string             `xml:"calendar-description"`
	ResourceType         *resourceTypeDecode `xml:"resourcetype"`
	SupportedComponents  *compSetDecode      `xml:"supported-calendar-component-set"`
}

type hrefDecode struct {
	Href string `xml:"href"`
}

type anyElement struct {
	XMLName xml.Name
}

type resourceTypeDecode struct {
	Types []anyElement `xml:",any"`
}

type compSetDecode struct {
	Comps []struct {
		Name string `xml:"name,attr"`
	} `xml:"comp"`
}

// ParseMultistatus decodes a multistatus body. Any failure to read the
// envelope is a *FormatError; problems with a single resource are reported
// through that resource's Status instead.
func ParseMultistatus(r io.Reader) (*Multistatus, error) {
	var ms multistatusDecode
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, &FormatError{Err: err}
	}

	out := &Multistatus{}
	for _, resp := range ms.Responses {
		status, props := resolveResponse(resp)
		if len(resp.Hrefs) == 0 {
			// Keep href-less responses so callers can report them.
			out.Responses = append(out.Responses, Response{Status: status, Props: props})
			continue
		}
		for _, href := range resp.Hrefs {
			out.Responses = append(out.Responses, Response{
				Href:   strings.TrimSpace(href),
				Status: status,
				Props:  props,
			})
		}
	}
	return out, nil
}

func resolveResponse(resp responseDecode) (int, Props) {
	var (
		props     Props
		okStatus  int
		anyStatus int
	)

	for _, ps := range resp.Propstats {
		code := ParseStatusLine(ps.Status)
		if strings.TrimSpace(ps.Status) == "" {
			code = 200
		}
		if anyStatus == 0 {
			anyStatus = code
		}
		if code < 200 || code > 299 {
			continue
		}
		if okStatus == 0 {
			okStatus = code
		}
		mergeProps(&props, ps.Prop)
	}

	switch {
	case resp.Status != nil:
		return ParseStatusLine(*resp.Status), props
	case okStatus != 0:
		return okStatus, props
	case len(resp.Propstats) > 0:
		return anyStatus, props
	default:
		return 200, props
	}
}

func mergeProps(dst *Props, src propDecode) {
	setString(&dst.DisplayName, src.DisplayName)
	setString(&dst.CTag, src.CTag)
	setString(&dst.ETag, src.ETag)
	setString(&dst.CalendarData, src.CalendarData)
	setString(&dst.CalendarColor, src.CalendarColor)
	setString(&dst.CalendarDescription, src.CalendarDescription)

	if src.CurrentUserPrincipal != nil && dst.CurrentUserPrincipal == nil {
		if href := strings.TrimSpace(src.CurrentUserPrincipal.Href); href != "" {
			dst.CurrentUserPrincipal = &href
		}
	}
	if src.CalendarHomeSet != nil && dst.CalendarHomeSet == nil {
		if href := strings.TrimSpace(src.CalendarHomeSet.Href); href != "" {
			dst.CalendarHomeSet = &href
		}
	}
	if src.ResourceType != nil && dst.ResourceType == nil {
		dst.ResourceType = make([]string, 0, len(src.ResourceType.Types))
		for _, t := range src.ResourceType.Types {
			dst.ResourceType = append(dst.ResourceType, t.XMLName.Local)
		}
	}
	if src.SupportedComponents != nil && dst.SupportedComponents == nil {
		dst.SupportedComponents = make([]string, 0, len(src.SupportedComponents.Comps))
		for _, c := range src.SupportedComponents.Comps {
			dst.SupportedComponents = append(dst.SupportedComponents, strings.ToUpper(c.Name))
		}
	}
}

func setString(dst **string, src *string) {
	if *dst != nil || src == nil {
		return
	}
	v := *src
	*dst = &v
}

// ParseStatusLine returns the code of an HTTP status line such as
// "HTTP/1.1 404 Not Found", or 0 if it cannot be parsed.
func ParseStatusLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 999 {
		return 0
	}
	return code
}
