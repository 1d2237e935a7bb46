package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

// Validate checks the configuration and reports every problem found in a single validation error.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	v.versions()
	v.generator()
	v.prepare()
	v.storage()
	v.retry()
	v.archive()
	if len(v.problems) > 0 {
		return cerrors.ValidationErrors(v.problems)
	}
	return nil
}

type validator struct {
	cfg      *Config
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) versions() {
	switch v.cfg.Versions.Source {
	case VersionSourceFile:
		if strings.TrimSpace(v.cfg.Versions.File) == "" {
			v.addf("versions.file is required")
		}
	case VersionSourceGit:
		if _, err := regexp.Compile(v.cfg.Versions.TagPattern); err != nil {
			v.addf("versions.tag_pattern: %v", err)
		}
	default:
		v.addf("versions.source %q is not one of file, git", v.cfg.Versions.Source)
	}
}

func (v *validator) generator() {
	if len(v.cfg.Generator.Command) == 0 || strings.TrimSpace(v.cfg.Generator.Command[0]) == "" {
		v.addf("generator.command is required")
	}
	if v.cfg.Generator.Timeout != "" {
		if d, err := time.ParseDuration(v.cfg.Generator.Timeout); err != nil || d <= 0 {
			v.addf("generator.timeout %q must be a positive duration", v.cfg.Generator.Timeout)
		}
	}
	for k := range v.cfg.Generator.Env {
		if k == "" || strings.ContainsAny(k, "= ") {
			v.addf("generator.env key %q is invalid", k)
		}
	}
	if strings.TrimSpace(v.cfg.CheckpointsDir) == "" {
		v.addf("checkpoints_dir is required")
	}
}

func (v *validator) prepare() {
	for i, argv := range v.cfg.Prepare.Commands {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			v.addf("prepare.commands[%d] is empty", i)
		}
	}
}

func (v *validator) storage() {
	s := v.cfg.Storage
	switch s.Backend {
	case StorageS3:
		if s.Bucket == "" {
			v.addf("storage.bucket is required for the s3 backend")
		}
	case StorageFS:
		if s.FSRoot == "" {
			v.addf("storage.fs_root is required for the fs backend")
		}
	default:
		v.addf("storage.backend %q is not one of s3, fs", s.Backend)
	}
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		v.addf("storage.access_key_id and storage.secret_access_key must be set together")
	}
	if strings.ContainsAny(s.ArchiveName, "/\\") {
		v.addf("storage.archive_name %q must be a bare file name", s.ArchiveName)
	}
	if !validACL(s.ArchiveACL) {
		v.addf("storage.archive_acl %q is not a canned ACL", s.ArchiveACL)
	}
}

func (v *validator) retry() {
	r := v.cfg.Retry
	if NormalizeRetryBackoff(string(r.Backoff)) == "" {
		v.addf("retry.backoff %q is not one of fixed, linear, exponential", r.Backoff)
	}
	if r.MaxRetries < 0 {
		v.addf("retry.max_retries cannot be negative")
	}
	initial, err := time.ParseDuration(r.InitialDelay)
	if err != nil || initial <= 0 {
		v.addf("retry.initial_delay %q must be a positive duration", r.InitialDelay)
	}
	maxDelay, err := time.ParseDuration(r.MaxDelay)
	if err != nil || maxDelay <= 0 {
		v.addf("retry.max_delay %q must be a positive duration", r.MaxDelay)
	}
}

func (v *validator) archive() {
	if l := v.cfg.Archive.CompressionLevel; l < 0 || l > 9 {
		v.addf("archive.compression_level %d must be between 0 and 9", l)
	}
}

var cannedACLs = map[string]bool{
	"private":                   true,
	"public-read":               true,
	"public-read-write":         true,
	"authenticated-read":        true,
	"aws-exec-read":             true,
	"bucket-owner-read":         true,
	"bucket-owner-full-control": true,
}

func validACL(acl string) bool { return cannedACLs[acl] }

// GeneratorTimeout returns the parsed per-version timeout, zero when unset.
func (c *Config) GeneratorTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Generator.Timeout)
	return d
}
