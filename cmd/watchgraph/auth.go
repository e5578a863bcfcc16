package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/session"
)

// envPassword supplies the login password non-interactively.
const envPassword = "WATCHGRAPH_PASSWORD"

func newLoginCmd(g *globalFlags) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store a session token",
		Long:  "Sign in with the identity provider configured under auth. The password is read from " + envPassword + " or the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), g, user)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User name or email")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runLogin(ctx context.Context, g *globalFlags, user string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.TokenURL == "" || cfg.Auth.ClientID == "" {
		return codeError(exitInput, "auth.token_url and auth.client_id must be set in the config file")
	}

	password, err := g.readPassword()
	if err != nil {
		return codeError(exitInput, "%s", err)
	}

	sess := session.New(sessionConfig(cfg))
	g.logger.Info("signing in", slog.String("user", user), slog.String("token_url", cfg.Auth.TokenURL))
	if err := sess.Login(ctx, user, password); err != nil {
		return codeError(exitAuth, "%s", err)
	}
	if err := sess.Save(cfg.TokenFile); err != nil {
		return codeError(exitAuth, "saving session: %s", err)
	}
	fmt.Fprintf(g.stderr, "Logged in as %s\n", user)
	return nil
}

func (g *globalFlags) readPassword() (string, error) {
	if p := os.Getenv(envPassword); p != "" {
		return p, nil
	}
	line, err := bufio.NewReader(g.stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return "", fmt.Errorf("empty password: set %s or pipe it on stdin", envPassword)
	}
	return line, nil
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(g)
		},
	}
}

func runLogout(g *globalFlags) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := session.RemoveToken(cfg.TokenFile); err != nil {
		return codeError(exitAuth, "%s", err)
	}
	fmt.Fprintln(g.stderr, "Logged out")
	return nil
}
