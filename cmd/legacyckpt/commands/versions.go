package commands

import (
	"fmt"

	"git.home.luguber.info/inful/legacyckpt/internal/versions"
)

// VersionsCmd prints the versions a run would generate, one per line.
type VersionsCmd struct {
	Only []string `name:"only" help:"Restrict to these versions (repeatable)" sep:"none"`
}

func (v *VersionsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	all, err := versions.Resolve(g.ctx(), cfg.Versions)
	if err != nil {
		return err
	}
	selected, err := versions.Filter(all, v.Only)
	if err != nil {
		return err
	}
	for _, ver := range selected {
		_, _ = fmt.Fprintln(g.stdout(), ver)
	}
	return nil
}
