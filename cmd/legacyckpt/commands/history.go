package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/history"
)

// HistoryCmd lists recorded generation attempts.
type HistoryCmd struct {
	RunID string `name:"run" help:"Show every attempt of this run id instead of the latest per version"`
	JSON  bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.History.Disabled {
		return cerrors.ValidationFailed("history.disabled", "run history is disabled in the configuration")
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return cerrors.HistoryFailed("open", err).WithContext("path", cfg.History.Path)
	}
	defer func() { _ = store.Close() }()

	var entries []history.Entry
	if h.RunID != "" {
		entries, err = store.ByRun(g.ctx(), h.RunID)
	} else {
		entries, err = store.Latest(g.ctx())
	}
	if err != nil {
		return cerrors.HistoryFailed("read", err)
	}

	out := g.stdout()
	if h.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []history.Entry{}
		}
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No recorded runs")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tSTATUS\tEXIT\tFILES\tDURATION\tWHEN\tRUN")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			e.Version, e.Status, e.ExitCode, e.FileCount, e.Duration.Round(time.Millisecond),
			e.Timestamp.Local().Format(time.RFC3339), e.RunID)
	}
	return tw.Flush()
}
