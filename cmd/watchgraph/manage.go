package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/catalogue"
	"github.com/dshills/watchgraph/internal/notediff"
	"github.com/dshills/watchgraph/internal/schema"
	"github.com/dshills/watchgraph/internal/schema/validate"
)

type updateFlags struct {
	status   string
	notes    string
	setNotes bool
}

func newUpdateCmd(g *globalFlags) *cobra.Command {
	var flags updateFlags
	cmd := &cobra.Command{
		Use:   "update <mapping-id>",
		Short: "Change a requirement's status and optionally its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.setNotes = cmd.Flags().Changed("notes")
			return runUpdate(cmd.Context(), g, args[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.status, "status", "", "New status: not_started, in_progress, completed or non_compliant")
	f.StringVar(&flags.notes, "notes", "", "Replace the requirement's notes")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func runUpdate(ctx context.Context, g *globalFlags, mappingID string, flags updateFlags) error {
	u := schema.StatusUpdate{Status: schema.Status(flags.status)}
	if flags.setNotes {
		u.Notes = &flags.notes
	}
	if err := validate.StatusUpdate(u); err != nil {
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

	var before string
	if u.Notes != nil {
		prev, err := r.client.GetMapping(ctx, mappingID)
		if err != nil {
			return remoteError("loading requirement", err)
		}
		before = prev.Notes
	}

	m, err := r.client.UpdateRequirement(ctx, mappingID, u)
	if err != nil {
		return remoteError("updating requirement", err)
	}
	g.logger.Info("requirement updated", slog.String("mapping_id", m.MappingID), slog.String("status", string(m.Status)))

	if u.Notes != nil {
		if d := notediff.Format(mappingID, before, m.Notes); d != "" {
			fmt.Fprint(g.stderr, d)
		}
	}

	if cfg.Format == "json" {
		return g.writeJSON(m)
	}
	return g.writeOutput(fmt.Appendf(nil, "%s: %s\n", m.MappingID, m.Status))
}

type registerFlags struct {
	name        string
	org         string
	risk        string
	description string
	department  string
	ownerEmail  string
}

func newRegisterCmd(g *globalFlags) *cobra.Command {
	var flags registerFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an AI system and attach its risk tier's requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), g, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.name, "name", "", "System name")
	f.StringVar(&flags.org, "org", "", "Owning organization")
	f.StringVar(&flags.risk, "risk", "", "Risk category: unacceptable, high, limited or minimal")
	f.StringVar(&flags.description, "description", "", "Short description")
	f.StringVar(&flags.department, "department", "", "Owning department")
	f.StringVar(&flags.ownerEmail, "owner-email", "", "Owner contact email")
	return cmd
}

func runRegister(ctx context.Context, g *globalFlags, flags registerFlags) error {
	s := schema.System{
		Name:         flags.name,
		Organization: flags.org,
		RiskCategory: schema.RiskCategory(flags.risk),
		Description:  flags.description,
		Department:   flags.department,
		OwnerEmail:   flags.ownerEmail,
	}
	if err := validate.System(s); err != nil {
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

	created, err := r.client.CreateSystem(ctx, s)
	if err != nil {
		return remoteError("registering system", err)
	}
	if cfg.Format == "json" {
		return g.writeJSON(created)
	}
	return g.writeOutput(fmt.Appendf(nil, "registered %s (%s, %s risk)\n", created.ID, created.Name, created.RiskCategory))
}

type catalogueFlags struct {
	risk string
	id   string
}

func newCatalogueCmd(g *globalFlags) *cobra.Command {
	var flags catalogueFlags
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "List the EU AI Act requirements, optionally for one risk tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogue(g, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.risk, "risk", "", "Risk category: unacceptable, high, limited or minimal")
	f.StringVar(&flags.id, "id", "", "Show a single requirement by id (e.g. AIA-09)")
	cmd.MarkFlagsMutuallyExclusive("risk", "id")
	return cmd
}

func runCatalogue(g *globalFlags, flags catalogueFlags) error {
	reqs := catalogue.All()
	switch {
	case flags.id != "":
		r, ok := catalogue.Lookup(flags.id)
		if !ok {
			return codeError(exitInput, "unknown requirement id %q", flags.id)
		}
		reqs = []catalogue.Requirement{r}
	case flags.risk != "":
		cat, err := catalogue.Get(schema.RiskCategory(flags.risk))
		if err != nil {
			return codeError(exitInput, "%s", err)
		}
		reqs = cat.Requirements
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	switch cfg.Format {
	case "json":
		return g.writeJSON(reqs)
	case "md":
		var buf bytes.Buffer
		buf.WriteString("| ID | Article | Title |\n|---|---|---|\n")
		for _, r := range reqs {
			fmt.Fprintf(&buf, "| %s | %s | %s |\n", r.ID, r.Article, r.Title)
		}
		return g.writeOutput(buf.Bytes())
	default:
		var buf bytes.Buffer
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tARTICLE\tTITLE")
		for _, r := range reqs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Article, r.Title)
		}
		_ = tw.Flush()
		return g.writeOutput(buf.Bytes())
	}
}

func (g *globalFlags) writeJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return codeError(exitGeneric, "encoding output: %s", err)
	}
	return g.writeOutput(append(out, '\n'))
}
