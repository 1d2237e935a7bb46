// Package workspace manages the staging directory the archive is written to,
// supporting both ephemeral (timestamped, removed after the run) and
// persistent (fixed path, kept) modes.
//
// Ephemeral mode creates a directory such as legacyckpt-20251214-122336-123456
// under the system temp dir. Persistent mode is used when archive.keep_local
// is set: the zip is written next to the checkpoints directory and survives
// the run, as `zip -r checkpoints.zip checkpoints` would leave it.
package workspace
