package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/pipeline"
)

// RunCmd runs the whole pipeline.
type RunCmd struct {
	Only         []string `name:"only" help:"Restrict to these versions (repeatable)" sep:"none"`
	SkipExisting bool     `name:"skip-existing" help:"Skip versions whose latest recorded run succeeded"`
	DryRun       bool     `name:"dry-run" help:"Print what would happen without executing or uploading"`
	Stages       string   `name:"stages" help:"Comma separated subset of stages to run (prepare,generate,sync,archive,upload)"`
	Report       string   `name:"report" help:"Write the JSON run report here (overrides report.path)" type:"path"`
}

func (c *RunCmd) Run(g *Global, root *CLI) error {
	req := pipeline.Request{Only: c.Only, SkipExisting: c.SkipExisting, DryRun: c.DryRun}
	if c.Stages != "" {
		stages, err := pipeline.ParseStages(c.Stages)
		if err != nil {
			return cerrors.ValidationFailed("stages", err.Error())
		}
		req.Stages = stages
	}
	return runPipelineWith(g, root, req, func(cfg *config.Config) {
		if c.Report != "" {
			cfg.Report.Path = c.Report
		}
	})
}

func runPipeline(g *Global, root *CLI, req pipeline.Request) error {
	return runPipelineWith(g, root, req, nil)
}

func runPipelineWith(g *Global, root *CLI, req pipeline.Request, adjust func(*config.Config)) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
	}
	rep, err := pipeline.New(cfg).Run(g.ctx(), req)
	if rep != nil {
		printSummary(g.stdout(), rep)
	}
	return err
}

func printSummary(w io.Writer, rep *pipeline.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(rep.Results) > 0 {
		_, _ = fmt.Fprintln(tw, "VERSION\tSTATUS\tATTEMPTS\tEXIT\tFILES\tDURATION")
		for _, r := range rep.Results {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
				r.Version, r.Status, r.Attempts, r.ExitCode, len(r.Files), r.Duration.Round(time.Millisecond))
		}
		_ = tw.Flush()
	}
	if rep.Sync != nil {
		_, _ = fmt.Fprintf(w, "sync: %d uploaded, %d up to date -> %s\n", len(rep.Sync.Uploaded), rep.Sync.Skipped, rep.Sync.Prefix)
	}
	if rep.Archive != nil && rep.Archive.Size > 0 {
		_, _ = fmt.Fprintf(w, "archive: %d entries, %d bytes\n", rep.Archive.Entries, rep.Archive.Size)
	}
	if rep.Upload != nil {
		_, _ = fmt.Fprintf(w, "upload: %s (%s)\n", rep.Upload.URL, rep.Upload.ACL)
		if rep.Upload.PublicURL != "" {
			_, _ = fmt.Fprintf(w, "public: %s\n", rep.Upload.PublicURL)
		}
	}
	_, _ = fmt.Fprintf(w, "run %s %s\n", rep.RunID, rep.Outcome)
}
