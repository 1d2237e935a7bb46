package config

import "strings"

// VersionSource selects where versions are read from.
type VersionSource string

const (
	VersionSourceFile VersionSource = "file"
	VersionSourceGit  VersionSource = "git"
)

// NormalizeVersionSource maps raw input to a known source, returning empty string for unknown.
func NormalizeVersionSource(raw string) VersionSource {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(VersionSourceFile):
		return VersionSourceFile
	case string(VersionSourceGit), "git-tags", "tags":
		return VersionSourceGit
	default:
		return ""
	}
}

// StorageBackend selects the object store implementation.
type StorageBackend string

const (
	StorageS3 StorageBackend = "s3"
	StorageFS StorageBackend = "fs"
)

// NormalizeStorageBackend maps raw input to a known backend, returning empty string for unknown.
func NormalizeStorageBackend(raw string) StorageBackend {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(StorageS3):
		return StorageS3
	case string(StorageFS), "file", "local":
		return StorageFS
	default:
		return ""
	}
}

// RetryBackoffMode selects how the delay between generator attempts grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff maps raw input to a known mode, returning empty string for unknown.
// An empty input is unknown too; defaults fill it in before validation.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch mode := RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return mode
	case "const", "constant":
		return RetryBackoffFixed
	case "exp":
		return RetryBackoffExponential
	default:
		return ""
	}
}
