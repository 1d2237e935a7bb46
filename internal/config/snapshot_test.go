package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func snapshotCfg() *Config {
	c := &Config{
		Generator: GeneratorConfig{
			Command: []string{"bash", "generate_checkpoints.sh"},
			Env:     map[string]string{"A": "1", "B": "2"},
		},
		Storage: StorageConfig{Bucket: "pl-public-data", SyncPrefix: "legacy/checkpoints"},
	}
	ApplyDefaults(c)
	return c
}

func TestSnapshotStableAcrossNormalizationVariants(t *testing.T) {
	a := snapshotCfg()

	b := snapshotCfg()
	b.Storage.SyncPrefix = "/legacy/checkpoints/"
	b.Generator.Env = map[string]string{"B": "2", "A": "1"}
	ApplyDefaults(b)

	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Len(t, a.Snapshot(), 64)
}

func TestSnapshotIgnoresOperationalSettings(t *testing.T) {
	a := snapshotCfg()
	b := snapshotCfg()
	b.Log.Level = LogLevelDebug
	b.Report.Path = "out/report.json"
	b.History.Path = "/tmp/history.db"
	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestSnapshotDetectsMeaningfulChange(t *testing.T) {
	base := snapshotCfg().Snapshot()

	for name, mutate := range map[string]func(*Config){
		"command":    func(c *Config) { c.Generator.Command = []string{"bash", "other.sh"} },
		"argv split": func(c *Config) { c.Generator.Command = []string{"bash generate_checkpoints.sh"} },
		"env":        func(c *Config) { c.Generator.Env["A"] = "3" },
		"bucket":     func(c *Config) { c.Storage.Bucket = "other" },
		"acl":        func(c *Config) { c.Storage.ArchiveACL = "private" },
		"level":      func(c *Config) { c.Archive.CompressionLevel = 9 },
	} {
		t.Run(name, func(t *testing.T) {
			c := snapshotCfg()
			mutate(c)
			assert.NotEqual(t, base, c.Snapshot())
		})
	}
}

func TestSnapshotNil(t *testing.T) {
	var c *Config
	assert.Empty(t, c.Snapshot())
}
