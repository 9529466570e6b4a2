// Package bootloader adds and removes kernel command-line parameters in the
// boot configuration the machine actually uses, keeping a byte-exact backup
// of every file it touches.
package bootloader

import (
	"errors"
	"log"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
)

// Kind is the detected bootloader.
type Kind int

const (
	SystemdBoot Kind = iota + 1
	Grub
)

func (k Kind) String() string {
	switch k {
	case SystemdBoot:
		return "systemd-boot"
	case Grub:
		return "grub"
	}
	return "unknown"
}

// Editor edits the configuration of one bootloader under Root.
type Editor struct {
	Root   sysfs.Root
	Kind   Kind
	Runner system.Runner

	// write replaces a file's content; overridden in tests.
	write func(path, content string) error
}

// Detect probes systemd-boot first, then GRUB. When both are present
// systemd-boot wins.
func Detect(root sysfs.Root, r system.Runner) (*Editor, error) {
	switch {
	case root.IsDir(EntriesDir):
		return &Editor{Root: root, Kind: SystemdBoot, Runner: r}, nil
	case root.Exists(GrubDefaults):
		return &Editor{Root: root, Kind: Grub, Runner: r}, nil
	}
	return nil, errs.New(errs.Bootloader, "no supported bootloader found (looked for %s and %s)",
		root.Path(EntriesDir), root.Path(GrubDefaults))
}

// AddParams sets each key=value on the kernel command line and returns a
// backup for every file whose content changed.
func (e *Editor) AddParams(params []string) ([]journal.Backup, error) {
	return e.rewrite(params, true)
}

// RemoveParams drops every token whose key matches one of params.
func (e *Editor) RemoveParams(params []string) ([]journal.Backup, error) {
	return e.rewrite(params, false)
}

func (e *Editor) rewrite(params []string, add bool) ([]journal.Backup, error) {
	files, err := e.files()
	if err != nil {
		return nil, err
	}

	var backups []journal.Backup
	for _, rel := range files {
		old, err := e.Root.ReadRaw(rel)
		if err != nil {
			return nil, e.rollback(backups, err)
		}
		updated, err := e.edit(old, params, add)
		if err != nil {
			return nil, e.rollback(backups, errs.Wrap(errs.Bootloader, err, "editing %s", e.Root.Path(rel)))
		}
		if updated == old {
			continue
		}
		path := e.Root.Path(rel)
		backups = append(backups, journal.Backup{Path: "/" + rel, OriginalContent: old})
		if err := e.writeFile(path, updated); err != nil {
			return nil, e.rollback(backups, errs.Path(errs.Bootloader, path, err))
		}
		log.Printf("[bootloader] updated %s", path)
	}
	if len(backups) == 0 {
		return nil, nil
	}
	unix.Sync()

	if e.Kind == Grub {
		if err := e.Regenerate(); err != nil {
			return backups, err
		}
	}
	return backups, nil
}

// rollback restores the backups taken so far in this call and returns
// cause, joined with any restore failures.
func (e *Editor) rollback(backups []journal.Backup, cause error) error {
	if len(backups) == 0 {
		return cause
	}
	log.Printf("[bootloader] rolling back %d file(s): %v", len(backups), cause)
	_, err := e.restore(backups)
	return errors.Join(cause, err)
}

func (e *Editor) files() ([]string, error) {
	if e.Kind == SystemdBoot {
		return e.systemdBootEntries()
	}
	return []string{GrubDefaults}, nil
}

func (e *Editor) edit(content string, params []string, add bool) (string, error) {
	if e.Kind == SystemdBoot {
		return EditOptionsContent(content, params, add)
	}
	return EditGrubContent(content, params, add)
}

func (e *Editor) writeFile(path, content string) error {
	if e.write != nil {
		return e.write(path, content)
	}
	return writeDefault(path, content)
}

func writeDefault(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// Regenerate runs grub-mkconfig against the active grub.cfg.
func (e *Editor) Regenerate() error {
	out := e.grubOutput()
	if err := system.GrubMkconfig(e.Runner, out); err != nil {
		return errs.Wrap(errs.Bootloader, err, "regenerating %s", out)
	}
	return nil
}

// RestoreBackups writes each backup's original content back to its path,
// which is relative to Root.
// Every entry is attempted; the ones that failed are returned along with the
// joined errors. GRUB is regenerated when a GRUB config was restored; if that
// fails the GRUB backups count as failed so the next revert regenerates again.
func (e *Editor) RestoreBackups(backups []journal.Backup) ([]journal.Backup, error) {
	failed, err := e.restore(backups)
	if len(failed) < len(backups) {
		unix.Sync()
	}
	for _, b := range backups {
		if !IsGrubConfig(b.Path) {
			continue
		}
		if gerr := e.Regenerate(); gerr != nil {
			err = errors.Join(err, gerr)
			failed = withGrub(failed, backups)
		}
		break
	}
	return failed, err
}

// withGrub adds the GRUB backups from all that are not in failed yet.
func withGrub(failed, all []journal.Backup) []journal.Backup {
	seen := make(map[string]bool, len(failed))
	for _, b := range failed {
		seen[b.Path] = true
	}
	for _, b := range all {
		if IsGrubConfig(b.Path) && !seen[b.Path] {
			failed = append(failed, b)
		}
	}
	return failed
}

func (e *Editor) restore(backups []journal.Backup) ([]journal.Backup, error) {
	var failed []journal.Backup
	var all []error
	for _, b := range backups {
		path := e.Root.Path(b.Path)
		if err := e.writeFile(path, b.OriginalContent); err != nil {
			failed = append(failed, b)
			all = append(all, errs.Path(errs.Bootloader, path, err))
			continue
		}
		log.Printf("[bootloader] restored %s", path)
	}
	return failed, errors.Join(all...)
}

// IsGrubConfig reports whether path is a GRUB defaults file.
func IsGrubConfig(path string) bool {
	return strings.HasSuffix(path, "/"+GrubDefaults)
}
