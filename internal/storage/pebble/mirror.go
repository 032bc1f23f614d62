package pebblestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/natefinch/atomic"
)

// ErrPrimaryRotated marks a mirror sync that lost a race with the primary:
// a file listed in the primary directory disappeared before it was mirrored.
var ErrPrimaryRotated = errors.New("primary rotated away state the replica references")

// syncMirror makes dst a private, openable image of the Pebble directory src.
//
// Tables are immutable and hard-linked (copied across filesystems). Manifests,
// markers, OPTIONS and WAL files change in place on the primary and are copied
// with write-then-rename so a reopen never observes a partial file. Metadata
// is mirrored before tables; files that no longer exist on the primary are
// pruned from dst.
func syncMirror(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrapf(err, "create mirror %s", dst)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "list primary %s", src)
	}

	keep := make(map[string]struct{}, len(entries))
	var tables, meta []string
	manifest := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || skipMirrorFile(name) {
			continue
		}
		keep[name] = struct{}{}
		switch {
		case strings.HasSuffix(name, ".sst"):
			tables = append(tables, name)
		default:
			if strings.HasPrefix(name, "MANIFEST-") {
				manifest = true
			}
			meta = append(meta, name)
		}
	}
	if !manifest {
		return errors.Newf("%s does not contain a pebble manifest", src)
	}

	for _, name := range meta {
		if err := copyAtomic(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	for _, name := range tables {
		if err := linkTable(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return pruneMirror(dst, keep)
}

func skipMirrorFile(name string) bool {
	return name == "LOCK" || strings.HasSuffix(name, ".dbtmp") || strings.HasPrefix(name, ".")
}

func copyAtomic(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Mark(errors.Wrapf(err, "mirror %s", filepath.Base(src)), ErrPrimaryRotated)
		}
		return errors.Wrapf(err, "open %s", src)
	}
	defer f.Close()
	if err := atomic.WriteFile(dst, f); err != nil {
		return errors.Wrapf(err, "copy %s", filepath.Base(src))
	}
	return nil
}

func linkTable(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	err := os.Link(src, dst)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		if _, statErr := os.Stat(src); os.IsNotExist(statErr) {
			return errors.Mark(errors.Wrapf(err, "mirror table %s", filepath.Base(src)), ErrPrimaryRotated)
		}
	}
	// cross-device or unsupported links fall back to a copy
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Mark(errors.Wrapf(err, "mirror table %s", filepath.Base(src)), ErrPrimaryRotated)
		}
		return errors.Wrapf(err, "open table %s", src)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create table %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return errors.Wrapf(err, "copy table %s", filepath.Base(src))
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "sync table %s", dst)
	}
	return out.Close()
}

func pruneMirror(dst string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(dst)
	if err != nil {
		return errors.Wrapf(err, "list mirror %s", dst)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "LOCK" {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dst, name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "prune %s", name)
		}
	}
	return nil
}
