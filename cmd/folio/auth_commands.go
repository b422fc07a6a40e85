package main

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"folio/internal/auth"
	"folio/internal/config"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Google Drive credentials",
	}

	authCmd.AddCommand(newAuthLoginCommand(ctx))
	authCmd.AddCommand(newAuthLogoutCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))

	return authCmd
}

// browserPrompt prints the consent URL and, on a terminal, spins until the
// callback arrives. The returned stop func clears the spinner.
func browserPrompt(out io.Writer) (auth.Option, func()) {
	var spin *spinner.Spinner
	prompt := func(url string) {
		fmt.Fprintf(out, "Opening your browser to authorize folio. If it does not open, visit:\n\n  %s\n\n", url)
		if !isTerminal(out) {
			return
		}
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		spin.Suffix = " Waiting for Google authorization..."
		spin.Start()
	}
	stop := func() {
		if spin != nil {
			spin.Stop()
		}
	}
	return auth.WithPrompt(prompt), stop
}

func newAuthLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize folio to use Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			prompt, stop := browserPrompt(cmd.ErrOrStderr())
			authorizer, err := newAuthorizer(cfg, logger, prompt)
			if err != nil {
				return err
			}
			_, err = authorizer.Login(cmd.Context())
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", cfg.Paths.TokenPath)
			return nil
		},
	}
}

func newAuthLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored Google Drive credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := auth.NewTokenStore(cfg.Paths.TokenPath).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials removed")
			return nil
		},
	}
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderAuthStatus(cfg, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func renderAuthStatus(cfg *config.Config, colorize bool) []string {
	lines := renderSectionHeader("Google Drive", colorize)

	clientKind, clientMsg := statusOK, "configured"
	if err := cfg.RequireGoogleCredentials(); err != nil {
		clientKind, clientMsg = statusError, "missing client id or secret"
	}
	lines = append(lines, renderStatusLine("OAuth client", clientKind, clientMsg, colorize))

	authorizer := auth.NewAuthorizer(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackPort,
		auth.NewTokenStore(cfg.Paths.TokenPath))
	status, err := authorizer.Status()
	switch {
	case err != nil:
		lines = append(lines, renderStatusLine("Token", statusError, err.Error(), colorize))
	case !status.Present:
		lines = append(lines, renderStatusLine("Token", statusWarn, "not stored; run 'folio auth login'", colorize))
	default:
		msg := status.TokenPath
		if !status.Expiry.IsZero() {
			msg = fmt.Sprintf("%s (access token expires %s)", msg, status.Expiry.Local().Format(time.DateTime))
		}
		lines = append(lines, renderStatusLine("Token", statusOK, msg, colorize))
		refreshKind := statusOK
		if !status.HasRefreshToken {
			refreshKind = statusWarn
		}
		lines = append(lines, renderStatusLine("Refresh token", refreshKind, yesNo(status.HasRefreshToken), colorize))
	}
	return lines
}
