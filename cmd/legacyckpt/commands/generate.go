package commands

import "git.home.luguber.info/inful/legacyckpt/internal/pipeline"

// GenerateCmd runs the prepare and generate stages only.
type GenerateCmd struct {
	Only         []string `name:"only" help:"Restrict to these versions (repeatable)" sep:"none"`
	SkipExisting bool     `name:"skip-existing" help:"Skip versions whose latest recorded run succeeded"`
	DryRun       bool     `name:"dry-run" help:"Print the commands without executing them"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	return runPipeline(g, root, pipeline.Request{
		Stages:       pipeline.GenerateStages,
		Only:         c.Only,
		SkipExisting: c.SkipExisting,
		DryRun:       c.DryRun,
	})
}
