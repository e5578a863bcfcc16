package main

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/dataset"
	"github.com/dshills/watchgraph/internal/server"
)

type serveFlags struct {
	addr  string
	seed  string
	token string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference API server with an in-memory store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.addr, "addr", ":8001", "Listen address")
	f.StringVar(&flags.seed, "seed", "", "Dataset file (JSON or YAML) to preload")
	f.StringVar(&flags.token, "token", "", "Require this bearer token on /api routes")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, flags serveFlags) error {
	store, err := newServeStore(flags.seed)
	if err != nil {
		return err
	}
	// The server logs every request at Info regardless of --verbose.
	logger := slog.New(slog.NewTextHandler(g.stderr, nil))
	if flags.seed != "" {
		logger.Info("seeded store", slog.String("path", flags.seed), slog.Int("systems", len(store.Systems())))
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.New(store, server.Options{Token: flags.token, Logger: logger})
	if err := server.Run(ctx, flags.addr, router, logger); err != nil {
		return codeError(exitGeneric, "%s", err)
	}
	return nil
}

func newServeStore(seed string) (*server.Store, error) {
	store := server.NewStore()
	if seed == "" {
		return store, nil
	}
	ds, err := dataset.Load(seed)
	if err != nil {
		return nil, codeError(exitInput, "loading seed dataset: %s", err)
	}
	if err := store.Seed(ds); err != nil {
		return nil, codeError(exitInput, "%s", err)
	}
	return store, nil
}
