// Package sysfs is the filesystem indirection every other bop package goes
// through. Production code roots it at "/", tests root it at a temp dir, so
// the sysfs, procfs and boot-config trees can all be faked on disk.
package sysfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vesaa/bop/internal/errs"
)

// Root carries the path prefix all relative paths are joined to.
type Root struct {
	prefix string
}

// System returns the production root.
func System() Root { return Root{prefix: "/"} }

// New returns a Root prefixed with dir.
func New(dir string) Root {
	if dir == "" {
		dir = "/"
	}
	return Root{prefix: dir}
}

// Prefix returns the directory the root is anchored at.
func (r Root) Prefix() string { return r.prefix }

// IsSystem reports whether the root is the real filesystem.
func (r Root) IsSystem() bool { return filepath.Clean(r.prefix) == "/" }

// Path joins rel to the prefix. Leading slashes on rel are ignored, so
// "/sys/power/state" and "sys/power/state" resolve to the same file.
func (r Root) Path(rel string) string {
	return filepath.Join(r.prefix, strings.TrimLeft(rel, "/"))
}

// Rel strips the prefix from an absolute path produced by Path. Paths that do
// not live under the prefix are returned unchanged.
func (r Root) Rel(abs string) string {
	rel, err := filepath.Rel(r.prefix, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return "/" + rel
}

// Read returns the file content with surrounding whitespace trimmed.
func (r Root) Read(rel string) (string, error) {
	data, err := os.ReadFile(r.Path(rel))
	if err != nil {
		return "", errs.Path(errs.SysfsRead, r.Path(rel), err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadValue is Read for knobs that report a choice list. When one entry is
// bracketed, as in "default [powersave] powersupersave", only that entry is
// returned; that is the form the kernel accepts back on write.
func (r Root) ReadValue(rel string) (string, error) {
	v, err := r.Read(rel)
	if err != nil {
		return "", err
	}
	return Selected(v), nil
}

// Selected returns the bracketed entry of a choice list, or s unchanged
// when nothing is bracketed.
func Selected(s string) string {
	for _, tok := range strings.Fields(s) {
		if len(tok) > 2 && strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
			return tok[1 : len(tok)-1]
		}
	}
	return s
}

// ReadRaw returns the exact bytes of the file as a string.
func (r Root) ReadRaw(rel string) (string, error) {
	data, err := os.ReadFile(r.Path(rel))
	if err != nil {
		return "", errs.Path(errs.SysfsRead, r.Path(rel), err)
	}
	return string(data), nil
}

// ReadOptional is Read that treats a missing or unreadable-by-permission file
// as absent. ok is false in that case; any other failure is returned.
func (r Root) ReadOptional(rel string) (value string, ok bool, err error) {
	v, err := r.Read(rel)
	if err != nil {
		if IsAbsent(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Write replaces the file content with value. The file is not created if its
// parent directory is missing.
func (r Root) Write(rel, value string) error {
	if err := os.WriteFile(r.Path(rel), []byte(value), 0o644); err != nil {
		return errs.Path(errs.SysfsWrite, r.Path(rel), err)
	}
	return nil
}

// ListDir returns the sorted entry names of a directory.
func (r Root) ListDir(rel string) ([]string, error) {
	entries, err := os.ReadDir(r.Path(rel))
	if err != nil {
		return nil, errs.Path(errs.SysfsRead, r.Path(rel), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether rel exists, following symlinks.
func (r Root) Exists(rel string) bool {
	_, err := os.Stat(r.Path(rel))
	return err == nil
}

// IsDir reports whether rel is a directory.
func (r Root) IsDir(rel string) bool {
	st, err := os.Stat(r.Path(rel))
	return err == nil && st.IsDir()
}

// Canonicalize resolves every symlink in rel and returns the absolute result.
func (r Root) Canonicalize(rel string) (string, error) {
	p, err := filepath.EvalSymlinks(r.Path(rel))
	if err != nil {
		return "", errs.Path(errs.SysfsRead, r.Path(rel), err)
	}
	return p, nil
}

// LinkBase returns the base name of a symlink target, the way the kernel
// exposes driver bindings ("device/driver -> ../../bus/pci/drivers/amdgpu").
func (r Root) LinkBase(rel string) (string, bool) {
	target, err := os.Readlink(r.Path(rel))
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// IsAbsent reports whether err means "not there" for detection purposes.
func IsAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}
