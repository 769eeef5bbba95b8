package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jooooscha/minicaldav/internal/davxml"
)

var calendarProps = []davxml.Property{
	davxml.PropResourceType,
	davxml.PropDisplayName,
	davxml.PropCTag,
	davxml.PropCalendarColor,
	davxml.PropCalendarDescription,
	davxml.PropSupportedComponents,
}

// DiscoverCalendars finds the event and task calendars reachable from
// baseURL.
//
// It asks baseURL for the current user principal, asks the principal for
// its calendar home set and lists the home set. When the server does not
// support the principal or home set lookup, or answers it with something
// that is not a multistatus, baseURL itself is listed; if that yields no
// calendars either, baseURL is returned as the only calendar.
// Authentication and network failures are never worked around.
func (c *Client) DiscoverCalendars(ctx context.Context, baseURL string) ([]Calendar, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	principal, err := c.findHref(ctx, base, davxml.PropCurrentUserPrincipal, func(p davxml.Props) *string {
		return p.CurrentUserPrincipal
	})
	if err != nil {
		return nil, err
	}
	if principal == nil {
		c.log.WithField("url", base.String()).Debug("no current-user-principal, listing base URL")
		return c.fallbackCalendars(ctx, base)
	}

	home, err := c.findHref(ctx, principal, davxml.PropCalendarHomeSet, func(p davxml.Props) *string {
		return p.CalendarHomeSet
	})
	if err != nil {
		return nil, err
	}
	if home == nil {
		c.log.WithField("url", principal.String()).Debug("no calendar-home-set, listing base URL")
		return c.fallbackCalendars(ctx, base)
	}

	return c.listCalendars(ctx, home)
}

// findHref asks u for a single href-valued property. A nil URL with a nil
// error means the server does not provide the property; only auth and
// network problems are returned as errors.
func (c *Client) findHref(ctx context.Context, u *url.URL, prop davxml.Property, get func(davxml.Props) *string) (*url.URL, error) {
	body, err := davxml.NewPropfind(prop)
	if err != nil {
		return nil, fmt.Errorf("failed to build PROPFIND body: %w", err)
	}

	ms, err := c.multistatus(ctx, methodPropfind, u, depthZero, body)
	if err != nil {
		var fe *FormatError
		if unsupported(err) || errors.As(err, &fe) {
			c.log.WithError(err).WithField("property", string(prop)).Debug("property lookup unsupported")
			return nil, nil
		}
		return nil, err
	}

	for _, resp := range ms.Responses {
		if !resp.OK() {
			continue
		}
		href := get(resp.Props)
		if href == nil {
			continue
		}
		resolved, err := resolveHref(u, *href)
		if err != nil {
			c.log.WithError(err).WithField("href", *href).Debug("ignoring unparsable href")
			continue
		}
		return resolved, nil
	}
	return nil, nil
}

// unsupported reports whether err is an HTTP status that means the server
// does not implement the request, as opposed to a failure to reach it.
func unsupported(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode != 0
}

func (c *Client) fallbackCalendars(ctx context.Context, base *url.URL) ([]Calendar, error) {
	cals, err := c.listCalendars(ctx, base)
	if err != nil && !unsupported(err) {
		return nil, err
	}
	if len(cals) > 0 {
		return cals, nil
	}
	return []Calendar{{URL: base.String()}}, nil
}

// listCalendars lists the children of collection and keeps the calendars
// that can hold events or to-dos.
func (c *Client) listCalendars(ctx context.Context, collection *url.URL) ([]Calendar, error) {
	body, err := davxml.NewPropfind(calendarProps...)
	if err != nil {
		return nil, fmt.Errorf("failed to build PROPFIND body: %w", err)
	}

	ms, err := c.multistatus(ctx, methodPropfind, collection, depthOne, body)
	if err != nil {
		return nil, err
	}

	var cals []Calendar
	for _, resp := range ms.Responses {
		log := c.log.WithField("href", resp.Href)
		if !resp.OK() {
			log.WithField("status", resp.Status).Debug("skipping collection member")
			continue
		}
		if !resp.Props.IsCalendar() {
			continue
		}
		if !resp.Props.SupportsComponent("VEVENT") && !resp.Props.SupportsComponent("VTODO") {
			log.Debug("skipping calendar without VEVENT or VTODO support")
			continue
		}

		u, err := resolveHref(collection, resp.Href)
		if err != nil {
			log.WithError(err).Debug("ignoring unparsable href")
			continue
		}

		cals = append(cals, Calendar{
			URL:         u.String(),
			DisplayName: deref(resp.Props.DisplayName),
			CTag:        deref(resp.Props.CTag),
			Color:       deref(resp.Props.CalendarColor),
			Description: deref(resp.Props.CalendarDescription),
			Components:  resp.Props.SupportedComponents,
		})
	}
	return cals, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
