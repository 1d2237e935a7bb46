package commands

import "git.home.luguber.info/inful/legacyckpt/internal/pipeline"

// PublishCmd syncs an existing checkpoints directory and uploads its archive.
type PublishCmd struct {
	DryRun bool `name:"dry-run" help:"List what would be uploaded without uploading"`
}

func (c *PublishCmd) Run(g *Global, root *CLI) error {
	return runPipeline(g, root, pipeline.Request{Stages: pipeline.PublishStages, DryRun: c.DryRun})
}
