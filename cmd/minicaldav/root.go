package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/jooooscha/minicaldav/caldav"
	"github.com/jooooscha/minicaldav/ical"
	"github.com/jooooscha/minicaldav/internal/auth"
	"github.com/jooooscha/minicaldav/internal/config"
	"github.com/jooooscha/minicaldav/internal/instrumentation"
	"github.com/jooooscha/minicaldav/internal/logging"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	flags      config.Flags
	verbose    bool
	jsonLogs   bool
	metrics    bool
}

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(cmd *cobra.Command, v string) {
	version = v
	cmd.Version = v
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "minicaldav",
		Short: "Read events and to-dos from CalDAV servers and parse iCalendar files",
		Long: `minicaldav discovers the calendars of a CalDAV account, fetches their events
and parses iCalendar data.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (CALDAV_URL, CALDAV_USERNAME, CALDAV_PASSWORD,
       CALDAV_TOKEN, CALDAV_TOKEN_PATH, CALDAV_TIMEOUT, CALDAV_TIMEZONES, ...)
    3. Config file (--config)
    4. Defaults`,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(`{{printf "minicaldav version %s\n" .Version}}`)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to JSON config file")
	pf.StringVar(&opts.flags.ServerURL, "url", "", "CalDAV server, principal or calendar URL (overrides CALDAV_URL)")
	pf.StringVar(&opts.flags.Username, "username", "", "Username for basic authentication (overrides CALDAV_USERNAME)")
	pf.StringVar(&opts.flags.Password, "password", "", "Password for basic authentication (overrides CALDAV_PASSWORD)")
	pf.StringVar(&opts.flags.TokenPath, "token-path", "", "Path of the OAuth token file (overrides CALDAV_TOKEN_PATH)")
	pf.StringVar(&opts.flags.CredentialsPath, "credentials-path", "", "Path of the OAuth client credentials JSON file")
	pf.DurationVar(&opts.flags.Timeout, "timeout", 0, "Timeout of each HTTP request (default 30s)")
	pf.BoolVar(&opts.flags.ResolveTimezones, "timezones", false, "Resolve TZID parameters with the system zone database")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "Write logs as JSON")
	pf.BoolVar(&opts.metrics, "metrics", false, "Print request metrics to stderr on exit")

	cmd.AddCommand(newCalendarsCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	cmd.AddCommand(newTodosCmd(opts))
	cmd.AddCommand(newParseCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))

	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	SetVersion(rootCmd, version)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// logger builds the logger for a command. Logs go to stderr.
func (o *globalOptions) logger(cmd *cobra.Command) *logrus.Entry {
	return logging.New(logging.Options{
		Verbose: o.verbose,
		JSON:    o.jsonLogs,
		Output:  cmd.ErrOrStderr(),
	}).WithField("command", cmd.Name())
}

// session is what a network command needs: a configured client and the
// means to clean up after it.
type session struct {
	cfg      *config.Config
	client   *caldav.Client
	log      *logrus.Entry
	provider *instrumentation.Provider
}

func (o *globalOptions) newSession(cmd *cobra.Command) (*session, error) {
	log := o.logger(cmd)

	cfg, err := config.LoadConfig(o.configFile, o.flags)
	if err != nil {
		return nil, err
	}

	creds, err := credentials(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	clientOpts := []caldav.Option{
		caldav.WithLogger(log),
		caldav.WithUserAgent("minicaldav/" + version),
	}
	if cfg.ResolveTimezones {
		clientOpts = append(clientOpts, caldav.WithTimezoneResolver(ical.ZoneDatabase))
	}

	s := &session{cfg: cfg, log: log}
	if o.metrics {
		s.provider, err = instrumentation.NewStdoutProvider(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, caldav.WithMeter(s.provider.Meter()))
	}

	transport := &http.Client{Timeout: cfg.TimeoutDuration()}
	s.client = caldav.NewClient(transport, creds, clientOpts...)
	return s, nil
}

// Close flushes metrics, if enabled.
func (s *session) Close() {
	if s.provider == nil {
		return
	}
	if err := s.provider.Shutdown(context.Background()); err != nil {
		s.log.WithError(err).Warn("failed to flush metrics")
	}
}

// credentials picks the authentication method configured in cfg.
func credentials(ctx context.Context, cfg *config.Config) (caldav.Credentials, error) {
	switch {
	case cfg.Password != "":
		return caldav.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	case cfg.Token != "":
		return caldav.BearerToken(cfg.Token), nil
	case cfg.TokenPath != "":
		oauthConfig, err := oauthConfig(cfg)
		if err != nil {
			return nil, err
		}
		source, err := auth.TokenSource(ctx, oauthConfig, auth.NewFileTokenStore(cfg.TokenPath))
		if err != nil {
			return nil, err
		}
		return caldav.TokenAuth{Source: source}, nil
	case cfg.Username != "":
		return caldav.BasicAuth{Username: cfg.Username}, nil
	}
	return nil, nil
}

// oauthConfig loads the OAuth client, or returns nil when none is
// configured and stored tokens cannot be refreshed.
func oauthConfig(cfg *config.Config) (*oauth2.Config, error) {
	if cfg.CredentialsPath == "" {
		return nil, nil
	}
	c, err := config.LoadOAuthConfig(cfg.CredentialsPath, cfg.OAuthScopes)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth credentials: %w", err)
	}
	return c, nil
}
