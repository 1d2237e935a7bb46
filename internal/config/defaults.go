package config

import (
	"path/filepath"
	"strings"
)

// Default values matching the legacy checkpoint CI workflow.
const (
	DefaultVersionsFile   = "tests/legacy/back-compatible-versions.txt"
	DefaultCheckpointsDir = "checkpoints"
	DefaultRegion         = "us-east-1"
	DefaultSyncPrefix     = "legacy/checkpoints/"
	DefaultArchivePrefix  = "legacy/"
	DefaultArchiveName    = "checkpoints.zip"
	DefaultArchiveACL     = "public-read"
	DefaultTagPattern     = `^v?\d+\.\d+\.\d+$`
	DefaultHistoryPath    = ".legacyckpt/history.db"
)

// ApplyDefaults fills zero values in place. Unknown enum values are left untouched for Validate to report.
func ApplyDefaults(cfg *Config) {
	if src := NormalizeVersionSource(string(cfg.Versions.Source)); src != "" {
		cfg.Versions.Source = src
	}
	if cfg.Versions.Source == VersionSourceFile && cfg.Versions.File == "" {
		cfg.Versions.File = DefaultVersionsFile
	}
	if cfg.Versions.Source == VersionSourceGit {
		if cfg.Versions.Repository == "" {
			cfg.Versions.Repository = "."
		}
		if cfg.Versions.TagPattern == "" {
			cfg.Versions.TagPattern = DefaultTagPattern
		}
	}

	if cfg.Generator.Workdir == "" {
		cfg.Generator.Workdir = "."
	}
	if cfg.Prepare.Workdir == "" {
		cfg.Prepare.Workdir = cfg.Generator.Workdir
	}
	if cfg.CheckpointsDir == "" {
		cfg.CheckpointsDir = DefaultCheckpointsDir
	}

	if b := NormalizeStorageBackend(string(cfg.Storage.Backend)); b != "" {
		cfg.Storage.Backend = b
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = DefaultRegion
	}
	if cfg.Storage.SyncPrefix == "" {
		cfg.Storage.SyncPrefix = DefaultSyncPrefix
	}
	if cfg.Storage.ArchivePrefix == "" {
		cfg.Storage.ArchivePrefix = DefaultArchivePrefix
	}
	if cfg.Storage.ArchiveName == "" {
		cfg.Storage.ArchiveName = DefaultArchiveName
	}
	if cfg.Storage.ArchiveACL == "" {
		cfg.Storage.ArchiveACL = DefaultArchiveACL
	}
	cfg.Storage.SyncPrefix = NormalizePrefix(cfg.Storage.SyncPrefix)
	cfg.Storage.ArchivePrefix = NormalizePrefix(cfg.Storage.ArchivePrefix)

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cfg.Retry.Backoff)); m != "" {
		cfg.Retry.Backoff = m
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "5s"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "1m"
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}

	cfg.Log.Level = NormalizeLogLevel(string(cfg.Log.Level))
	cfg.Log.Format = NormalizeLogFormat(string(cfg.Log.Format))
}

// NormalizePrefix converts a key prefix to forward slashes with exactly one trailing slash,
// or the empty string for the bucket root.
func NormalizePrefix(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}
