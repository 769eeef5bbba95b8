package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jooooscha/minicaldav/internal/auth"
	"github.com/jooooscha/minicaldav/internal/config"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var (
		callbackAddr string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize access with OAuth and store the token",
		Long: `Run the OAuth authorization flow for servers that require a bearer token,
such as Google Calendar.

The client credentials are read from --credentials-path and the token is
written to --token-path. Later commands refresh it automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger(cmd)

			cfg, err := config.ResolveConfig(opts.configFile, opts.flags)
			if err != nil {
				return err
			}
			if cfg.TokenPath == "" {
				return fmt.Errorf("token_path is required")
			}
			if cfg.CredentialsPath == "" {
				return fmt.Errorf("credentials_path is required")
			}

			oauthConfig, err := config.LoadOAuthConfig(cfg.CredentialsPath, cfg.OAuthScopes)
			if err != nil {
				return fmt.Errorf("failed to load OAuth credentials: %w", err)
			}

			token, err := auth.Login(cmd.Context(), oauthConfig, auth.NewFileTokenStore(cfg.TokenPath), auth.LoginOptions{
				CallbackAddr: callbackAddr,
				Timeout:      timeout,
				Out:          cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			log.WithField("expiry", token.Expiry).Info("Token saved to " + cfg.TokenPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&callbackAddr, "callback-addr", auth.DefaultCallbackAddr, "Address of the local OAuth callback server")
	cmd.Flags().DurationVar(&timeout, "login-timeout", 5*time.Minute, "How long to wait for the authorization")

	return cmd
}
