package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
)

// Global carries process-wide state into every command.
type Global struct {
	Context context.Context
	Stdout  io.Writer
	Stderr  io.Writer
}

func (g *Global) ctx() context.Context {
	if g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"legacyckpt.yaml" env:"LEGACYCKPT_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init     InitCmd     `cmd:"" help:"Write a default configuration file"`
	Versions VersionsCmd `cmd:"" help:"Print the resolved versions list"`
	Generate GenerateCmd `cmd:"" help:"Run the prepare commands and generate checkpoints for every version"`
	Publish  PublishCmd  `cmd:"" help:"Sync checkpoints, build the archive and upload it"`
	Run      RunCmd      `cmd:"" help:"Run every stage: prepare, generate, sync, archive, upload"`
	History  HistoryCmd  `cmd:"" help:"Show the latest recorded status per version"`
}

// AfterApply runs after flag parsing; set up logging once. The configured
// level and format are applied when a command loads the configuration.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration and reconfigures logging from its log section.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(g.stderr(), cfg.Log, c.Verbose))
	slog.Debug("Configuration loaded", logfields.Path(c.Config))
	return cfg, nil
}

func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := lc.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
