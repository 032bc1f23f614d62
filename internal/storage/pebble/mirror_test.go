package pebblestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestSyncMirrorRequiresManifest(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "000001.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := syncMirror(src, t.TempDir()); err == nil {
		t.Fatalf("expected error without manifest")
	}
}

func TestSyncMirrorCopiesAndPrunes(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	files := map[string]string{
		"MANIFEST-000001": "m",
		"000002.sst":      "t",
		"LOCK":            "",
		"OPTIONS-000003":  "o",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "000009.sst"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := syncMirror(src, dst); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, name := range []string{"MANIFEST-000001", "000002.sst", "OPTIONS-000003"} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Fatalf("%s not mirrored: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "LOCK")); !os.IsNotExist(err) {
		t.Fatalf("LOCK must not be mirrored")
	}
	if _, err := os.Stat(filepath.Join(dst, "000009.sst")); !os.IsNotExist(err) {
		t.Fatalf("stale table should be pruned")
	}
}

func TestSyncMirrorMissingPrimary(t *testing.T) {
	err := syncMirror(filepath.Join(t.TempDir(), "gone"), t.TempDir())
	if err == nil {
		t.Fatalf("expected error for missing primary")
	}
	if errors.Is(err, ErrPrimaryRotated) {
		t.Fatalf("a missing primary directory is not a rotation")
	}
}
