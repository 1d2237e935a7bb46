package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

// DefaultPath is the configuration file looked up when -c is not given.
const DefaultPath = "legacyckpt.yaml"

// Config is the complete legacyckpt configuration.
type Config struct {
	Versions       VersionsConfig  `yaml:"versions"`
	Prepare        PrepareConfig   `yaml:"prepare,omitempty"`
	Generator      GeneratorConfig `yaml:"generator"`
	CheckpointsDir string          `yaml:"checkpoints_dir"`
	Storage        StorageConfig   `yaml:"storage"`
	Archive        ArchiveConfig   `yaml:"archive,omitempty"`
	Retry          RetryConfig     `yaml:"retry,omitempty"`
	History        HistoryConfig   `yaml:"history,omitempty"`
	Report         ReportConfig    `yaml:"report,omitempty"`
	Metrics        MetricsConfig   `yaml:"metrics,omitempty"`
	Log            LogConfig       `yaml:"log,omitempty"`
}

// VersionsConfig describes where the list of versions comes from.
type VersionsConfig struct {
	Source     VersionSource `yaml:"source,omitempty"`      // file (default) | git
	File       string        `yaml:"file,omitempty"`        // newline-delimited list
	Repository string        `yaml:"repository,omitempty"`  // local git repository (source: git)
	TagPattern string        `yaml:"tag_pattern,omitempty"` // regexp applied to tag names
}

// PrepareConfig lists commands run once before generation (dependency install).
type PrepareConfig struct {
	Commands [][]string `yaml:"commands,omitempty"`
	Workdir  string     `yaml:"workdir,omitempty"`
}

// GeneratorConfig describes the external per-version generation command.
type GeneratorConfig struct {
	Command []string          `yaml:"command"`
	Workdir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"` // duration string, empty = none
}

// StorageConfig describes the publish destination.
type StorageConfig struct {
	Backend       StorageBackend `yaml:"backend,omitempty"` // s3 (default) | fs
	Bucket        string         `yaml:"bucket,omitempty"`
	Region        string         `yaml:"region,omitempty"`
	Endpoint      string         `yaml:"endpoint,omitempty"`
	PathStyle     bool           `yaml:"path_style,omitempty"`
	SyncPrefix    string         `yaml:"sync_prefix,omitempty"`
	ArchivePrefix string         `yaml:"archive_prefix,omitempty"`
	ArchiveName   string         `yaml:"archive_name,omitempty"`
	ArchiveACL    string         `yaml:"archive_acl,omitempty"`
	FSRoot        string         `yaml:"fs_root,omitempty"` // backend: fs

	// Optional static credentials, usually "${AWS_ACCESS_KEY_ID}" style references.
	// When empty the SDK default chain (environment, shared config, instance role) is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// ArchiveConfig tunes the zip produced for the archive upload.
type ArchiveConfig struct {
	CompressionLevel int  `yaml:"compression_level,omitempty"` // 1..9, 0 = library default
	KeepLocal        bool `yaml:"keep_local,omitempty"`        // leave the zip next to checkpoints_dir
}

// RetryConfig controls per-version generator retries.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

// ReportConfig controls the JSON run report.
type ReportConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig controls Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	// Missing .env files are normal outside of local development.
	if err := loadEnvFiles(); err != nil && !errors.Is(err, errNoEnvFile) {
		return nil, cerrors.ConfigInvalid(".env", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, cerrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, cerrors.ConfigInvalid(configPath, fmt.Errorf("read: %w", err))
	}
	return Parse(data, configPath)
}

// Parse decodes raw YAML (with ${ENV} expansion), applies defaults and validates.
func Parse(data []byte, source string) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, cerrors.ConfigInvalid(source, err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration matching the legacy checkpoint workflow.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Versions: VersionsConfig{
			Source: VersionSourceFile,
			File:   "tests/legacy/back-compatible-versions.txt",
		},
		Prepare: PrepareConfig{
			Commands: [][]string{{"pip", "install", "-r", "requirements.txt", "--quiet"}},
		},
		Generator: GeneratorConfig{
			Command: []string{"bash", "tests/legacy/generate_checkpoints.sh", "{version}"},
			Workdir: ".",
		},
		CheckpointsDir: "checkpoints",
		Storage: StorageConfig{
			Backend:       StorageS3,
			Bucket:        "pl-public-data",
			Region:        "us-east-1",
			SyncPrefix:    "legacy/checkpoints/",
			ArchivePrefix: "legacy/",
			ArchiveName:   "checkpoints.zip",
			ArchiveACL:    "public-read",
		},
		Log: LogConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	out, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	header := "# legacyckpt configuration\n# Credentials are read from AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (or .env).\n"
	if err := os.WriteFile(configPath, append([]byte(header), out...), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
