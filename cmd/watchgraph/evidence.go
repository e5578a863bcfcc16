package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/api"
)

func newEvidenceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Manage evidence files attached to requirements",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <mapping-id>",
			Short: "List evidence attached to a requirement",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEvidenceList(cmd.Context(), g, args[0])
			},
		},
		&cobra.Command{
			Use:   "upload <mapping-id> <file>",
			Short: "Upload a file (" + strings.Join(api.EvidenceTypes, ", ") + "; max 25 MiB)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEvidenceUpload(cmd.Context(), g, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "download <evidence-id>",
			Short: "Print a signed download URL for an evidence file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEvidenceDownload(cmd.Context(), g, args[0])
			},
		},
		&cobra.Command{
			Use:   "delete <evidence-id>",
			Short: "Delete an evidence file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEvidenceDelete(cmd.Context(), g, args[0])
			},
		},
	)
	return cmd
}

func runEvidenceList(ctx context.Context, g *globalFlags, mappingID string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	items, err := r.client.ListEvidence(ctx, mappingID)
	if err != nil {
		return remoteError("listing evidence", err)
	}
	if cfg.Format == "json" {
		return g.writeJSON(items)
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSIZE\tUPLOADED")
	for _, ev := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ev.ID, ev.FileName, ev.FileSize, ev.CreatedAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
	return g.writeOutput([]byte(sb.String()))
}

func runEvidenceUpload(ctx context.Context, g *globalFlags, mappingID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return codeError(exitInput, "evidence file: %s", err)
	}
	if err := api.CheckEvidence(info.Name(), info.Size()); err != nil {
		return codeError(exitInput, "%s", err)
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	ev, err := r.client.UploadEvidence(ctx, mappingID, path)
	if err != nil {
		return remoteError("uploading evidence", err)
	}
	if cfg.Format == "json" {
		return g.writeJSON(ev)
	}
	return g.writeOutput(fmt.Appendf(nil, "uploaded %s as %s\n", ev.FileName, ev.ID))
}

func runEvidenceDownload(ctx context.Context, g *globalFlags, evidenceID string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	u, err := r.client.EvidenceDownloadURL(ctx, evidenceID)
	if err != nil {
		return remoteError("fetching download URL", err)
	}
	return g.writeOutput([]byte(u + "\n"))
}

func runEvidenceDelete(ctx context.Context, g *globalFlags, evidenceID string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	if err := r.client.DeleteEvidence(ctx, evidenceID); err != nil {
		return remoteError("deleting evidence", err)
	}
	g.logger.Info("evidence deleted", slog.String("evidence_id", evidenceID))
	return g.writeOutput(fmt.Appendf(nil, "deleted %s\n", evidenceID))
}
