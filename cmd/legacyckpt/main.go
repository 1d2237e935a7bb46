package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/legacyckpt/cmd/legacyckpt/commands"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("legacyckpt"),
		kong.Description("Generate legacy checkpoints for released versions and publish them to object storage."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Context: ctx, Stdout: os.Stdout}, &cli)
	stop()
	if err != nil {
		cerrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
