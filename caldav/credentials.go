package caldav

import (
	"net/http"

	"github.com/emersion/go-webdav"
	"golang.org/x/oauth2"
)

// Credentials authorize outgoing requests by wrapping the transport.
type Credentials interface {
	Wrap(c webdav.HTTPClient) webdav.HTTPClient
}

// BasicAuth sends HTTP basic authentication with every request.
type BasicAuth struct {
	Username string
	Password string
}

// Wrap implements Credentials.
func (b BasicAuth) Wrap(c webdav.HTTPClient) webdav.HTTPClient {
	return webdav.HTTPClientWithBasicAuth(c, b.Username, b.Password)
}

// TokenAuth sends an OAuth2 bearer token obtained from Source with every
// request.
type TokenAuth struct {
	Source oauth2.TokenSource
}

// Wrap implements Credentials.
func (a TokenAuth) Wrap(c webdav.HTTPClient) webdav.HTTPClient {
	return &tokenClient{c: c, source: a.Source}
}

// BearerToken returns credentials for a fixed access token.
func BearerToken(token string) Credentials {
	return TokenAuth{Source: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})}
}

type tokenClient struct {
	c      webdav.HTTPClient
	source oauth2.TokenSource
}

func (tc *tokenClient) Do(req *http.Request) (*http.Response, error) {
	token, err := tc.source.Token()
	if err != nil {
		return nil, &AuthError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	req = req.Clone(req.Context())
	token.SetAuthHeader(req)
	return tc.c.Do(req)
}
