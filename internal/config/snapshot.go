package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of the fields that decide what gets generated
// and where it is published. Logging, history, report and metrics settings are
// left out. Map fields are hashed in key order. Call after ApplyDefaults.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }

	w("versions.source", string(c.Versions.Source))
	w("versions.file", c.Versions.File)
	w("versions.repository", c.Versions.Repository)
	w("versions.tag_pattern", c.Versions.TagPattern)

	for i, argv := range c.Prepare.Commands {
		w("prepare.commands", strconv.Itoa(i), strings.Join(argv, "\x1f"))
	}
	w("prepare.workdir", c.Prepare.Workdir)

	w("generator.command", strings.Join(c.Generator.Command, "\x1f"))
	w("generator.workdir", c.Generator.Workdir)
	w("generator.timeout", c.Generator.Timeout)
	keys := make([]string, 0, len(c.Generator.Env))
	for k := range c.Generator.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w("generator.env", k, c.Generator.Env[k])
	}
	w("checkpoints_dir", c.CheckpointsDir)

	w("storage.backend", string(c.Storage.Backend))
	w("storage.bucket", c.Storage.Bucket)
	w("storage.endpoint", c.Storage.Endpoint)
	w("storage.fs_root", c.Storage.FSRoot)
	w("storage.sync_prefix", c.Storage.SyncPrefix)
	w("storage.archive_prefix", c.Storage.ArchivePrefix)
	w("storage.archive_name", c.Storage.ArchiveName)
	w("storage.archive_acl", c.Storage.ArchiveACL)
	w("archive.compression_level", strconv.Itoa(c.Archive.CompressionLevel))
	return hex.EncodeToString(h.Sum(nil))
}
