package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// UpdateGoldenEnv rewrites golden files instead of comparing when set.
const UpdateGoldenEnv = "YAADE_UPDATE_GOLDEN"

// AssertGolden compares got with the file at path. Trailing newlines are
// ignored on both sides.
func AssertGolden(t *testing.T, path string, got []byte) {
	t.Helper()
	got = bytes.TrimRight(got, "\n")
	if os.Getenv(UpdateGoldenEnv) != "" {
		writeGolden(t, path, got)
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v (set %s=1 to create it)", path, err, UpdateGoldenEnv)
	}
	want = bytes.TrimRight(want, "\n")
	if !bytes.Equal(want, got) {
		t.Fatalf("%s differs\n got: %s\nwant: %s", path, got, want)
	}
}

func writeGolden(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
