package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned by TokenStore.Load and TokenSource when no token
// has been saved yet.
var ErrNoToken = errors.New("no OAuth token stored, run the login command first")

// DefaultCallbackAddr is where the OAuth callback server listens first.
const DefaultCallbackAddr = "127.0.0.1:8080"

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	// Check if the token was refreshed by comparing access tokens
	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.Save(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// TokenSource returns a token source backed by the stored token. With an
// OAuth config the token is refreshed when it expires and the refreshed
// token is written back to the store; without one the stored token is
// used as is.
func TokenSource(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore) (oauth2.TokenSource, error) {
	token, err := tokenStore.Load()
	if errors.Is(err, ErrNoToken) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if oauthConfig == nil {
		return oauth2.StaticTokenSource(token), nil
	}

	return &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		tokenStore: tokenStore,
		lastToken:  token,
	}, nil
}

// callback is the result of one redirect to the local server.
type callback struct {
	code string
	err  error
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Uses addr if it is free, or a random port otherwise.
func startLocalServer(addr, state string) (string, <-chan callback, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		// Fall back to random port if addr is in use
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	results := make(chan callback, 1)
	send := func(cb callback) {
		select {
		case results <- cb:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", q.Get("error"))
			send(callback{err: fmt.Errorf("authorization error: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			send(callback{err: fmt.Errorf("authorization state mismatch")})
		case q.Get("code") == "":
			fmt.Fprintf(w, "<html><body><h1>No authorization code received</h1></body></html>")
			send(callback{err: fmt.Errorf("no authorization code received")})
		default:
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			send(callback{code: q.Get("code")})
		}
	})

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			send(callback{err: fmt.Errorf("server error: %w", err)})
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}

	return redirectURL, results, stop, nil
}

// LoginOptions tune the interactive flow.
type LoginOptions struct {
	// CallbackAddr defaults to DefaultCallbackAddr.
	CallbackAddr string
	// Timeout defaults to five minutes.
	Timeout time.Duration
	// Out receives the instructions for the user.
	Out io.Writer
}

// Login guides the user through the interactive OAuth flow and stores the
// resulting token.
func Login(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, opts LoginOptions) (*oauth2.Token, error) {
	if opts.CallbackAddr == "" {
		opts.CallbackAddr = DefaultCallbackAddr
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	redirectURL, results, stop, err := startLocalServer(opts.CallbackAddr, state)
	if err != nil {
		return nil, err
	}
	defer stop()

	cfg := *oauthConfig
	cfg.RedirectURL = redirectURL
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(opts.Out, "Starting local server on %s\n", redirectURL)
	if "http://"+opts.CallbackAddr != redirectURL {
		fmt.Fprintf(opts.Out, "Note: %s was unavailable. Make sure %s is an authorized redirect URI of your OAuth client.\n", opts.CallbackAddr, redirectURL)
	}
	fmt.Fprintln(opts.Out, "\nPlease visit the following URL to authorize the application:")
	fmt.Fprintln(opts.Out, authURL)
	fmt.Fprintln(opts.Out, "\nWaiting for authorization...")

	// Wait for the authorization code
	var code string
	select {
	case cb := <-results:
		if cb.err != nil {
			return nil, fmt.Errorf("failed to receive authorization code: %w", cb.err)
		}
		code = cb.code
	case <-time.After(opts.Timeout):
		return nil, fmt.Errorf("authorization timeout: no response received within %s", opts.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := tokenStore.Save(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintln(opts.Out, "Authorization successful!")
	return token, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
