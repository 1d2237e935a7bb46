package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "r-1", RunID("r-1")},
		{"Version", KeyVersion, "1.9.0", Version("1.9.0")},
		{"Stage", KeyStage, "generate", Stage("generate")},
		{"Bucket", KeyBucket, "pl-public-data", Bucket("pl-public-data")},
		{"Key", KeyKey, "legacy/checkpoints.zip", Key("legacy/checkpoints.zip")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Stream", KeyStream, "stdout", Stream("stdout")},
		{"Backend", KeyBackend, "s3", Backend("s3")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Attempt(3); a.Key != KeyAttempt || a.Value.Int64() != 3 {
		t.Fatalf("unexpected attempt attr %v", a)
	}
	if a := ExitCode(2); a.Key != KeyExitCode || a.Value.Int64() != 2 {
		t.Fatalf("unexpected exit code attr %v", a)
	}
	if a := Bytes(1024); a.Value.Int64() != 1024 {
		t.Fatalf("unexpected bytes attr %v", a)
	}
	if a := Elapsed(1500 * time.Microsecond); a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Fatalf("unexpected elapsed attr %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("nil error should produce empty value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("expected boom, got %q", a.Value.String())
	}
}
