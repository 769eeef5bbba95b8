package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/jooooscha/minicaldav/ical"
	"github.com/jooooscha/minicaldav/internal/davxml"
	"github.com/jooooscha/minicaldav/internal/instrumentation"
)

const (
	methodPropfind = "PROPFIND"
	methodReport   = "REPORT"

	depthZero = "0"
	depthOne  = "1"

	defaultUserAgent = "minicaldav"
)

// Client talks to a CalDAV server. It keeps no state between calls and is
// safe for concurrent use if the transport is.
type Client struct {
	http      webdav.HTTPClient
	log       *logrus.Entry
	meter     metric.Meter
	metrics   *instrumentation.Metrics
	resolver  ical.TimezoneResolver
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The client logs at debug level only.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMeter records request and decoding metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

// WithTimezoneResolver sets the resolver used for TZID parameters of
// fetched events. Without one, zone labels are kept unresolved.
func WithTimezoneResolver(r ical.TimezoneResolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client sending requests through transport. A nil
// transport means http.DefaultClient; nil creds means no authentication.
func NewClient(transport webdav.HTTPClient, creds Credentials, opts ...Option) *Client {
	if transport == nil {
		transport = http.DefaultClient
	}
	if creds != nil {
		transport = creds.Wrap(transport)
	}

	c := &Client{
		http:      transport,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		c.log = logrus.NewEntry(logger)
	}
	c.log = c.log.WithField("component", "caldav")

	c.metrics = &instrumentation.Metrics{}
	if c.meter != nil {
		m, err := instrumentation.NewMetrics(c.meter)
		if err != nil {
			c.log.WithError(err).Debug("metrics disabled")
		} else {
			c.metrics = m
		}
	}

	return c
}

// CheckConnection sends a depth 0 PROPFIND to rawURL and reports whether
// the server accepted it.
func (c *Client) CheckConnection(ctx context.Context, rawURL string) error {
	u, err := parseBaseURL(rawURL)
	if err != nil {
		return err
	}
	body, err := davxml.NewPropfind(davxml.PropResourceType)
	if err != nil {
		return fmt.Errorf("failed to build PROPFIND body: %w", err)
	}
	_, err = c.multistatus(ctx, methodPropfind, u, depthZero, body)
	return err
}

// multistatus performs a request expected to answer 207 (or 200) with a
// multistatus body.
func (c *Client) multistatus(ctx context.Context, method string, u *url.URL, depth string, body []byte) (*davxml.Multistatus, error) {
	resp, err := c.do(ctx, method, u, depth, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ms, err := davxml.ParseMultistatus(resp.Body)
	if err != nil {
		return nil, &FormatError{URL: u.String(), Err: err}
	}
	return ms, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, depth string, body []byte) (*http.Response, error) {
	log := c.log.WithFields(logrus.Fields{"method": method, "url": u.String()})

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: method, URL: u.String(), Err: err}
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", depth)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(ctx, method, 0, time.Since(start))
		log.WithError(err).Debug("request failed")

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, &TransportError{Method: method, URL: u.String(), Err: err}
	}
	c.metrics.RecordRequest(ctx, method, resp.StatusCode, time.Since(start))
	log.WithField("status", resp.StatusCode).Debug("request done")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp)
		return nil, &AuthError{Method: method, URL: u.String(), StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK:
		drain(resp)
		return nil, &TransportError{Method: method, URL: u.String(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func parseBaseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("caldav: invalid URL %q: %w", rawURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("caldav: URL %q is not absolute", rawURL)
	}
	return u, nil
}

// resolveHref turns an href from a response into an absolute URL.
func resolveHref(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

// sameResource compares two URLs ignoring a trailing slash.
func sameResource(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host && trimSlash(a.EscapedPath()) == trimSlash(b.EscapedPath())
}

func trimSlash(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	if p == "" {
		return "/"
	}
	return p
}

// DiscoverCalendars is a shorthand for NewClient(transport, creds).DiscoverCalendars.
func DiscoverCalendars(ctx context.Context, transport webdav.HTTPClient, baseURL string, creds Credentials) ([]Calendar, error) {
	return NewClient(transport, creds).DiscoverCalendars(ctx, baseURL)
}

// FetchEvents is a shorthand for NewClient(transport, creds).FetchEvents.
func FetchEvents(ctx context.Context, transport webdav.HTTPClient, cal Calendar, creds Credentials) ([]Event, []*ResourceError, error) {
	return NewClient(transport, creds).FetchEvents(ctx, cal)
}
