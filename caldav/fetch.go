package caldav

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/sirupsen/logrus"

	"github.com/jooooscha/minicaldav/ical"
	"github.com/jooooscha/minicaldav/internal/davxml"
	"github.com/jooooscha/minicaldav/internal/instrumentation"
)

// FetchEvents returns every event stored in cal.
//
// Resources that could not be turned into events are returned as
// ResourceErrors next to the events that could. The error is non-nil only
// when the request as a whole failed.
func (c *Client) FetchEvents(ctx context.Context, cal Calendar) ([]Event, []*ResourceError, error) {
	return c.FetchEventsInRange(ctx, cal, time.Time{}, time.Time{})
}

// FetchEventsInRange is like FetchEvents but asks the server to return only
// events overlapping [start, end). Zero times leave that side open; when
// both are zero no time-range filter is sent.
func (c *Client) FetchEventsInRange(ctx context.Context, cal Calendar, start, end time.Time) ([]Event, []*ResourceError, error) {
	body, err := davxml.NewCalendarQuery(start, end, davxml.PropETag, davxml.PropCalendarData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build calendar-query body: %w", err)
	}
	return c.fetchEvents(ctx, cal, body)
}

// MultigetEvents fetches the resources named by hrefs from cal in a single
// request. Hrefs may be absolute or relative to the calendar URL.
func (c *Client) MultigetEvents(ctx context.Context, cal Calendar, hrefs []string) ([]Event, []*ResourceError, error) {
	if len(hrefs) == 0 {
		return nil, nil, nil
	}

	collection, err := parseBaseURL(cal.URL)
	if err != nil {
		return nil, nil, err
	}
	paths := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		u, err := resolveHref(collection, href)
		if err != nil {
			return nil, nil, fmt.Errorf("caldav: invalid href %q: %w", href, err)
		}
		paths = append(paths, u.EscapedPath())
	}

	body, err := davxml.NewCalendarMultiget(paths, davxml.PropETag, davxml.PropCalendarData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build calendar-multiget body: %w", err)
	}
	return c.fetchEvents(ctx, cal, body)
}

// decodeFunc turns the parsed calendar data of one resource into items and
// returns how many it added. It must add nothing when it fails.
type decodeFunc func(href, etag string, forest []*ical.Component) (int, error)

// report sends a REPORT to cal and hands every usable resource to decode.
// component names what decode looks for, for errors and logs.
func (c *Client) report(ctx context.Context, cal Calendar, component string, body []byte, decode decodeFunc) ([]*ResourceError, error) {
	collection, err := parseBaseURL(cal.URL)
	if err != nil {
		return nil, err
	}

	ms, err := c.multistatus(ctx, methodReport, collection, depthOne, body)
	if err != nil {
		return nil, err
	}

	var (
		decoded int
		errs    []*ResourceError
	)
	for _, resp := range ms.Responses {
		href := resp.Href
		u, err := resolveHref(collection, resp.Href)
		if err == nil {
			href = u.String()
			if sameResource(u, collection) && blank(resp.Props.CalendarData) {
				continue
			}
		}

		n, rerr := c.decodeResource(ctx, href, component, resp, decode)
		if rerr != nil {
			c.log.WithError(rerr).WithField("href", href).Debug("skipping resource")
			errs = append(errs, rerr)
			continue
		}
		decoded += n
	}

	c.log.WithFields(logrus.Fields{
		"calendar":  cal.URL,
		"component": component,
		"decoded":   decoded,
		"errors":    len(errs),
	}).Debug("fetched calendar objects")

	return errs, nil
}

// decodeResource checks and parses one multistatus response and passes it
// to decode. Either every component of the resource decodes or the
// resource is reported as failed.
func (c *Client) decodeResource(ctx context.Context, href, component string, resp davxml.Response, decode decodeFunc) (int, *ResourceError) {
	if !resp.OK() {
		c.metrics.RecordResourceError(ctx, instrumentation.ReasonStatus)
		return 0, &ResourceError{Href: href, StatusCode: resp.Status}
	}
	if blank(resp.Props.CalendarData) {
		c.metrics.RecordResourceError(ctx, instrumentation.ReasonMissingData)
		return 0, &ResourceError{Href: href, StatusCode: resp.Status, Err: ErrMissingCalendarData}
	}

	forest, err := ical.ParseString(*resp.Props.CalendarData)
	if err != nil {
		c.metrics.RecordResourceError(ctx, instrumentation.ReasonParse)
		return 0, &ResourceError{Href: href, StatusCode: resp.Status, Err: err}
	}

	var etag string
	if resp.Props.ETag != nil {
		etag = strings.TrimSpace(*resp.Props.ETag)
	}

	n, err := decode(href, etag, forest)
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: %s", ErrNoComponent, component)
	}
	if err != nil {
		c.metrics.RecordResourceError(ctx, instrumentation.ReasonDecode)
		return 0, &ResourceError{Href: href, StatusCode: resp.Status, Err: err}
	}
	return n, nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func (c *Client) fetchEvents(ctx context.Context, cal Calendar, body []byte) ([]Event, []*ResourceError, error) {
	var events []Event
	errs, err := c.report(ctx, cal, goical.CompEvent, body, func(href, etag string, forest []*ical.Component) (int, error) {
		decoded, err := ical.Events(forest, c.resolver)
		if err != nil {
			return 0, err
		}
		for _, ev := range decoded {
			events = append(events, Event{Href: href, ETag: etag, Event: ev})
		}
		return len(decoded), nil
	})
	if err != nil {
		return nil, nil, err
	}
	c.metrics.RecordEvents(ctx, len(events))
	return events, errs, nil
}

// FetchTodos returns every to-do stored in cal, with the same partial
// failure semantics as FetchEvents.
func (c *Client) FetchTodos(ctx context.Context, cal Calendar) ([]Todo, []*ResourceError, error) {
	body, err := davxml.NewComponentQuery(goical.CompToDo, time.Time{}, time.Time{}, davxml.PropETag, davxml.PropCalendarData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build calendar-query body: %w", err)
	}

	var todos []Todo
	errs, err := c.report(ctx, cal, goical.CompToDo, body, func(href, etag string, forest []*ical.Component) (int, error) {
		decoded, err := ical.Todos(forest, c.resolver)
		if err != nil {
			return 0, err
		}
		for _, td := range decoded {
			todos = append(todos, Todo{Href: href, ETag: etag, Todo: td})
		}
		return len(decoded), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return todos, errs, nil
}

// ResourcePath returns the path of an event's resource, suitable for
// MultigetEvents.
func (e Event) ResourcePath() string {
	u, err := url.Parse(e.Href)
	if err != nil {
		return e.Href
	}
	return u.EscapedPath()
}
