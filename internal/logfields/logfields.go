package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyAttempt    = "attempt"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyBucket     = "bucket"
	KeyKey        = "key"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyBytes      = "bytes"
	KeyStream     = "stream"
	KeyCommand    = "command"
	KeyBackend    = "backend"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr         { return slog.String(KeyRunID, id) }
func Version(v string) slog.Attr        { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr           { return slog.Int(KeyAttempt, n) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Bucket(b string) slog.Attr         { return slog.String(KeyBucket, b) }
func Key(k string) slog.Attr            { return slog.String(KeyKey, k) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Bytes(n int64) slog.Attr           { return slog.Int64(KeyBytes, n) }
func Stream(name string) slog.Attr      { return slog.String(KeyStream, name) }
func Command(argv []string) slog.Attr   { return slog.Any(KeyCommand, argv) }
func Backend(name string) slog.Attr     { return slog.String(KeyBackend, name) }
func Elapsed(d time.Duration) slog.Attr { return DurationMS(float64(d.Microseconds()) / 1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
