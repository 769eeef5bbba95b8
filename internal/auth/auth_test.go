package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// mockTokenStore is a mock implementation of TokenStore for testing.
type mockTokenStore struct {
	mu          sync.Mutex
	token       *oauth2.Token
	savedTokens []*oauth2.Token
}

func (m *mockTokenStore) Save(token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedTokens = append(m.savedTokens, token)
	m.token = token
	return nil
}

func (m *mockTokenStore) Load() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, ErrNoToken
	}
	return m.token, nil
}

// newTokenServer answers OAuth token requests with the given access token.
func newTokenServer(t *testing.T, accessToken string) (*httptest.Server, *int) {
	t.Helper()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `","token_type":"Bearer","refresh_token":"test-refresh-token","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/o/oauth2/auth",
			TokenURL: tokenURL,
		},
	}
}

func TestTokenSource_TokenExists(t *testing.T) {
	ctx := context.Background()

	// Create a mock token store with a valid, non-expired token
	mockStore := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	tokenServer, calls := newTokenServer(t, "unused")
	source, err := TokenSource(ctx, testOAuthConfig(tokenServer.URL), mockStore)
	if err != nil {
		t.Fatalf("TokenSource() returned an error: %v", err)
	}

	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if token.AccessToken != "test-access-token" {
		t.Errorf("Expected stored access token, got '%s'", token.AccessToken)
	}
	if *calls != 0 {
		t.Errorf("Expected no refresh, got %d token requests", *calls)
	}
	if len(mockStore.savedTokens) != 0 {
		t.Errorf("Expected no token to be saved, got %d", len(mockStore.savedTokens))
	}
}

func TestTokenSource_RefreshSavesToken(t *testing.T) {
	ctx := context.Background()
	mockStore := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "expired-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(-1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	tokenServer, calls := newTokenServer(t, "fresh-access-token")
	source, err := TokenSource(ctx, testOAuthConfig(tokenServer.URL), mockStore)
	if err != nil {
		t.Fatalf("TokenSource() returned an error: %v", err)
	}

	for i := 0; i < 2; i++ {
		token, err := source.Token()
		if err != nil {
			t.Fatalf("Token() returned an error: %v", err)
		}
		if token.AccessToken != "fresh-access-token" {
			t.Errorf("Expected refreshed access token, got '%s'", token.AccessToken)
		}
	}

	if *calls != 1 {
		t.Errorf("Expected exactly one refresh, got %d", *calls)
	}
	if len(mockStore.savedTokens) != 1 {
		t.Fatalf("Expected refreshed token to be saved once, got %d", len(mockStore.savedTokens))
	}
	if mockStore.savedTokens[0].AccessToken != "fresh-access-token" {
		t.Errorf("Expected saved token to be the refreshed one, got '%s'", mockStore.savedTokens[0].AccessToken)
	}
}

func TestTokenSource_NoToken(t *testing.T) {
	_, err := TokenSource(context.Background(), nil, &mockTokenStore{})
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
}

func TestTokenSource_StaticWithoutConfig(t *testing.T) {
	mockStore := &mockTokenStore{token: &oauth2.Token{AccessToken: "static", TokenType: "Bearer"}}

	source, err := TokenSource(context.Background(), nil, mockStore)
	if err != nil {
		t.Fatalf("TokenSource() returned an error: %v", err)
	}
	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if token.AccessToken != "static" {
		t.Errorf("Expected 'static', got '%s'", token.AccessToken)
	}
}

// authURLCatcher forwards the authorization URL printed by Login.
type authURLCatcher struct {
	urls chan string
}

func (c *authURLCatcher) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if strings.HasPrefix(line, "https://") && strings.Contains(line, "state=") {
		select {
		case c.urls <- line:
		default:
		}
	}
	return len(p), nil
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	tokenServer, _ := newTokenServer(t, "login-access-token")
	mockStore := &mockTokenStore{}
	out := &authURLCatcher{urls: make(chan string, 1)}

	type result struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := Login(ctx, testOAuthConfig(tokenServer.URL), mockStore, LoginOptions{
			CallbackAddr: "127.0.0.1:0",
			Timeout:      10 * time.Second,
			Out:          out,
		})
		done <- result{token, err}
	}()

	var authURL string
	select {
	case authURL = <-out.urls:
	case <-time.After(5 * time.Second):
		t.Fatal("Login() did not print an authorization URL")
	}

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("Invalid authorization URL %q: %v", authURL, err)
	}
	q := u.Query()
	if q.Get("access_type") != "offline" {
		t.Errorf("Expected offline access, got %q", q.Get("access_type"))
	}

	callback := q.Get("redirect_uri") + "/?code=test-code&state=" + url.QueryEscape(q.Get("state"))
	resp, err := http.Get(callback)
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	r := <-done
	if r.err != nil {
		t.Fatalf("Login() returned an error: %v", r.err)
	}
	if r.token.AccessToken != "login-access-token" {
		t.Errorf("Expected exchanged token, got '%s'", r.token.AccessToken)
	}
	if len(mockStore.savedTokens) != 1 {
		t.Errorf("Expected token to be saved, got %d saves", len(mockStore.savedTokens))
	}
}

func TestLogin_StateMismatch(t *testing.T) {
	tokenServer, calls := newTokenServer(t, "unused")
	out := &authURLCatcher{urls: make(chan string, 1)}

	done := make(chan error, 1)
	go func() {
		_, err := Login(context.Background(), testOAuthConfig(tokenServer.URL), &mockTokenStore{}, LoginOptions{
			CallbackAddr: "127.0.0.1:0",
			Timeout:      10 * time.Second,
			Out:          out,
		})
		done <- err
	}()

	authURL := <-out.urls
	u, _ := url.Parse(authURL)
	resp, err := http.Get(u.Query().Get("redirect_uri") + "/?code=test-code&state=forged")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	if err := <-done; err == nil || !strings.Contains(err.Error(), "state mismatch") {
		t.Errorf("Expected state mismatch error, got %v", err)
	}
	if *calls != 0 {
		t.Error("Expected no code exchange after a state mismatch")
	}
}

func TestLogin_Timeout(t *testing.T) {
	_, err := Login(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"), &mockTokenStore{}, LoginOptions{
		CallbackAddr: "127.0.0.1:0",
		Timeout:      50 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "authorization timeout") {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestFileTokenStore_SaveLoad(t *testing.T) {
	// Create a temporary directory for the token file
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(tokenPath)

	// Create a sample token
	expiry := time.Now().Add(1 * time.Hour)
	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       expiry,
		TokenType:    "Bearer",
	}

	if err := store.Save(token); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	loadedToken, err := store.Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if loadedToken == nil {
		t.Fatal("Load() returned nil token")
	}

	if loadedToken.AccessToken != token.AccessToken {
		t.Errorf("Expected AccessToken to be '%s', got '%s'", token.AccessToken, loadedToken.AccessToken)
	}
	if loadedToken.RefreshToken != token.RefreshToken {
		t.Errorf("Expected RefreshToken to be '%s', got '%s'", token.RefreshToken, loadedToken.RefreshToken)
	}
	if !loadedToken.Expiry.Equal(token.Expiry) {
		t.Errorf("Expected Expiry to be %v, got %v", token.Expiry, loadedToken.Expiry)
	}
}

func TestFileTokenStore_LoadEmpty(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nonexistent.json"))

	token, err := store.Load()
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("Expected ErrNoToken for a missing file, got: %v", err)
	}
	if token != nil {
		t.Errorf("Load() should return nil for a missing file, got: %v", token)
	}

	if _, err := TokenSource(context.Background(), nil, store); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected TokenSource to pass ErrNoToken through, got %v", err)
	}
}

func TestFileTokenStore_LoadCorrupt(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenPath, []byte(`{"access_token":`), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileTokenStore(tokenPath).Load()
	if err == nil || errors.Is(err, ErrNoToken) {
		t.Errorf("Expected a corrupt token error, got %v", err)
	}
}

func TestFileTokenStore_SaveCreatesDirectory(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "config", "minicaldav", "token.json")
	store := NewFileTokenStore(tokenPath)

	if err := store.Save(&oauth2.Token{AccessToken: "a1", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	info, err := os.Stat(tokenPath)
	if err != nil {
		t.Fatalf("Expected token file to exist: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected token file mode 0600, got %o", perm)
	}

	// Saving again replaces the file and leaves no temporary files behind.
	if err := store.Save(&oauth2.Token{AccessToken: "a2", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(tokenPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the token file, got %d entries", len(entries))
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if loaded.AccessToken != "a2" {
		t.Errorf("Expected AccessToken to be 'a2', got '%s'", loaded.AccessToken)
	}
}
