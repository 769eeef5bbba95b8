package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultStatePath = "minicaldav-state.json"

	// DefaultOAuthScope grants CalDAV access on Google Calendar, the most
	// common OAuth protected CalDAV server.
	DefaultOAuthScope = "https://www.googleapis.com/auth/calendar"
)

// Duration is a time.Duration read from "30s" style strings in both the
// config file and the environment.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds the settings shared by all commands.
type Config struct {
	ServerURL string `json:"server_url,omitempty" env:"CALDAV_URL"`
	Username  string `json:"username,omitempty" env:"CALDAV_USERNAME"`
	Password  string `json:"password,omitempty" env:"CALDAV_PASSWORD"` // App-specific password for iCloud and friends
	Token     string `json:"token,omitempty" env:"CALDAV_TOKEN"`       // Static bearer token
	TokenPath string `json:"token_path,omitempty" env:"CALDAV_TOKEN_PATH"`

	Timeout          Duration `json:"timeout,omitempty" env:"CALDAV_TIMEOUT"`
	ResolveTimezones bool     `json:"resolve_timezones,omitempty" env:"CALDAV_TIMEZONES"`
	StatePath        string   `json:"state_path,omitempty" env:"CALDAV_STATE_PATH"`

	// Sync window, counted in whole weeks from the start of the current
	// week. Zero forward weeks syncs the whole calendar.
	SyncWindowWeeks     int `json:"sync_window_weeks,omitempty" env:"CALDAV_SYNC_WEEKS"`
	SyncWindowWeeksPast int `json:"sync_window_weeks_past,omitempty" env:"CALDAV_SYNC_WEEKS_PAST"`

	// OAuth client used by the login command and to refresh the token at
	// TokenPath.
	CredentialsPath string   `json:"credentials_path,omitempty" env:"CALDAV_OAUTH_CREDENTIALS"`
	OAuthScopes     []string `json:"oauth_scopes,omitempty" env:"CALDAV_OAUTH_SCOPES"`
}

// Flags carries command-line values. Zero values mean "not given".
type Flags struct {
	ServerURL        string
	Username         string
	Password         string
	TokenPath        string
	CredentialsPath  string
	StatePath        string
	Timeout          time.Duration
	ResolveTimezones bool
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if the result is not usable.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	config, err := ResolveConfig(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ResolveConfig merges the configuration sources like LoadConfig but does
// not validate the result.
func ResolveConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables. Unset and empty
	// variables leave the file values alone.
	if err := env.ParseWithFuncs(&config, env.CustomParsers{
		reflect.TypeOf(Duration(0)): func(v string) (interface{}, error) {
			d, err := time.ParseDuration(v)
			return Duration(d), err
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.ServerURL != "" {
		config.ServerURL = flags.ServerURL
	}
	if flags.Username != "" {
		config.Username = flags.Username
	}
	if flags.Password != "" {
		config.Password = flags.Password
	}
	if flags.TokenPath != "" {
		config.TokenPath = flags.TokenPath
	}
	if flags.CredentialsPath != "" {
		config.CredentialsPath = flags.CredentialsPath
	}
	if flags.StatePath != "" {
		config.StatePath = flags.StatePath
	}
	if flags.Timeout != 0 {
		config.Timeout = Duration(flags.Timeout)
	}
	if flags.ResolveTimezones {
		config.ResolveTimezones = true
	}

	// Step 4: Apply defaults and validate
	if config.Timeout <= 0 {
		config.Timeout = Duration(DefaultTimeout)
	}
	if config.StatePath == "" {
		config.StatePath = DefaultStatePath
	}
	if len(config.OAuthScopes) == 0 {
		config.OAuthScopes = []string{DefaultOAuthScope}
	}

	return &config, nil
}

// Validate checks that the configuration describes a reachable server and
// at most one way of authenticating.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must be provided via --url flag, CALDAV_URL environment variable, or config file")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url must be an absolute http or https URL, got %q", c.ServerURL)
	}

	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("username must be provided together with password")
	}

	var methods []string
	if c.Password != "" {
		methods = append(methods, "password")
	}
	if c.Token != "" {
		methods = append(methods, "token")
	}
	if c.TokenPath != "" {
		methods = append(methods, "token_path")
	}
	if len(methods) > 1 {
		return fmt.Errorf("only one of password, token and token_path may be set, got %s", strings.Join(methods, ", "))
	}

	if c.SyncWindowWeeks < 0 || c.SyncWindowWeeksPast < 0 {
		return fmt.Errorf("sync window weeks must not be negative")
	}

	return nil
}

// TimeoutDuration returns the request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout)
}

// oauthCredentials represents the structure of an OAuth client credentials
// JSON file as downloaded from the Google Cloud Console.
type oauthCredentials struct {
	Installed oauthClient `json:"installed"`
	Web       oauthClient `json:"web"`
}

type oauthClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// LoadOAuthConfig loads an OAuth client from a credentials JSON file.
func LoadOAuthConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds oauthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	client := creds.Installed
	if client.ClientID == "" {
		client = creds.Web
	}
	if client.ClientID == "" {
		return nil, fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
	}
	if client.AuthURI == "" || client.TokenURI == "" {
		return nil, fmt.Errorf("credentials file must contain auth_uri and token_uri")
	}

	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  client.AuthURI,
			TokenURL: client.TokenURI,
		},
		Scopes: scopes,
	}, nil
}
