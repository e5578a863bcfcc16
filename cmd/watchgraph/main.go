package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/api"
	"github.com/dshills/watchgraph/internal/config"
	"github.com/dshills/watchgraph/internal/session"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

const toolName = "watchgraph"

// Exit codes.
const (
	exitGeneric   = 1
	exitThreshold = 2
	exitInput     = 3
	exitAuth      = 4
	exitAPI       = 5
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	format     string
	out        string
	verbose    bool
	redact     bool

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitGeneric)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           toolName,
		Short:         "Track EU AI Act compliance across AI systems",
		Long:          "WatchGraph reports requirement-level compliance for registered AI systems and manages their status.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.stdout = cmd.OutOrStdout()
			g.stderr = cmd.ErrOrStderr()
			g.stdin = cmd.InOrStdin()
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelInfo
			}
			g.logger = slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{Level: level}))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default $HOME/.watchgraph/config.yaml)")
	pf.StringVar(&g.format, "format", "", "Output format: json, md or text (default text on a terminal, else json)")
	pf.StringVar(&g.out, "out", "", "Write output to file instead of stdout")
	pf.BoolVar(&g.verbose, "verbose", false, "Log processing steps to stderr")
	pf.BoolVar(&g.redact, "redact", false, "Mask secrets and email addresses in rendered reports")

	root.AddCommand(
		newDashboardCmd(g),
		newSystemCmd(g),
		newComplianceCmd(g),
		newUpdateCmd(g),
		newRegisterCmd(g),
		newReportCmd(g),
		newCatalogueCmd(g),
		newLoginCmd(g),
		newLogoutCmd(g),
		newEvidenceCmd(g),
		newServeCmd(g),
	)
	return root
}

// loadConfig reads the config file and applies the --format override.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, codeError(exitInput, "loading config: %s", err)
	}
	if g.format != "" {
		cfg.Format = g.format
	}
	if err := cfg.Validate(); err != nil {
		return nil, codeError(exitInput, "invalid config: %s", err)
	}
	g.logger.Info("config loaded", slog.String("api_url", cfg.APIURL), slog.String("format", cfg.Format))
	return cfg, nil
}

// remote bundles the API client with the session that authenticates it.
type remote struct {
	client    *api.Client
	sess      *session.Session // nil when anonymous
	tokenFile string
	logger    *slog.Logger
}

// connect builds an API client, authenticated when a stored token exists.
func (g *globalFlags) connect(cfg *config.Config) (*remote, error) {
	r := &remote{tokenFile: cfg.TokenFile, logger: g.logger}
	opts := []api.Option{api.WithTimeout(cfg.Timeout)}

	tok, err := session.LoadToken(cfg.TokenFile)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		g.logger.Info("no stored session; requests are anonymous")
	case err != nil:
		return nil, codeError(exitAuth, "loading session: %s", err)
	default:
		r.sess = session.New(sessionConfig(cfg))
		r.sess.Resume(tok)
		opts = append(opts, api.WithTokenSource(r.sess))
	}
	r.client = api.New(cfg.APIURL, opts...)
	return r, nil
}

// persist writes back a token that may have been refreshed during the run.
func (r *remote) persist() {
	if r.sess == nil {
		return
	}
	if err := r.sess.Save(r.tokenFile); err != nil {
		r.logger.Warn("could not save session", slog.String("error", err.Error()))
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		TokenURL: cfg.Auth.TokenURL,
		ClientID: cfg.Auth.ClientID,
		Scopes:   cfg.Auth.Scopes,
	}
}

// remoteError maps a client error to an exit code: auth failures are 4,
// anything else from the API is 5.
func remoteError(what string, err error) error {
	var ae *api.APIError
	if errors.Is(err, session.ErrNotLoggedIn) ||
		(errors.As(err, &ae) && (ae.StatusCode == 401 || ae.StatusCode == 403)) {
		return codeError(exitAuth, "%s: %s", what, err)
	}
	return codeError(exitAPI, "%s: %s", what, err)
}

// writeOutput writes data to --out or stdout, ensuring a trailing newline on
// stdout.
func (g *globalFlags) writeOutput(data []byte) error {
	if g.out != "" {
		if err := os.WriteFile(g.out, data, 0o644); err != nil {
			return codeError(exitInput, "writing output file: %s", err)
		}
		return nil
	}
	if _, err := g.stdout.Write(data); err != nil {
		return codeError(exitInput, "writing output: %s", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(g.stdout)
	}
	return nil
}

// checkThreshold returns an exit-2 error when pct is below failUnder.
func checkThreshold(pct, failUnder float64) error {
	if failUnder > 0 && pct < failUnder {
		return codeError(exitThreshold, "overall compliance %.1f%% is below --fail-under %.1f%%", pct, failUnder)
	}
	return nil
}

func validateFailUnder(v float64) error {
	if v < 0 || v > 100 {
		return codeError(exitInput, "--fail-under must be between 0 and 100, got %g", v)
	}
	return nil
}
