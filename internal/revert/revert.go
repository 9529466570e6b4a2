// Package revert undoes what the journal records. Entries that could not be
// undone stay in the journal so a later revert can retry them.
package revert

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/vesaa/bop/internal/bootloader"
	"github.com/vesaa/bop/internal/brightness"
	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

// Ops is every side effect revert performs.
type Ops interface {
	RestoreBrightness(value uint64) error
	WriteSysfs(path, value string) error
	ToggleWakeup(device string) error
	RestoreBackups(backups []journal.Backup) ([]journal.Backup, error)
	RemoveKernelParams(params []string) error
	EnableService(name string) error
	RemoveFile(path string) error
	RemoveUnit(path string) error
	SaveState(j *journal.Journal) error
	RemoveState() error
}

// Result summarizes a revert.
type Result struct {
	Undone int
	// Remaining is what is still outstanding; empty when Complete.
	Remaining *journal.Journal
	Complete  bool
	// RebootRequired is set when boot configuration was restored.
	RebootRequired bool
}

// Engine runs reverts.
type Engine struct {
	Ops Ops
	Out io.Writer
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Run undoes j. The journal on disk is rewritten with the remaining entries
// or deleted when nothing is left. The returned error joins every step
// failure; the Result is always non-nil.
func (e *Engine) Run(j *journal.Journal) (*Result, error) {
	w := e.out()
	left := &journal.Journal{Timestamp: j.Timestamp}
	res := &Result{Remaining: left}
	var failures []error
	fail := func(what string, err error) {
		fmt.Fprintf(w, "  ✗ %s: %v\n", what, err)
		failures = append(failures, fmt.Errorf("%s: %w", what, err))
	}
	done := func(format string, args ...any) {
		res.Undone++
		fmt.Fprintf(w, "  ✓ "+format+"\n", args...)
	}

	if j.BrightnessOriginal != nil {
		if err := e.Ops.RestoreBrightness(*j.BrightnessOriginal); err != nil {
			v := *j.BrightnessOriginal
			left.BrightnessOriginal = &v
			fail("restoring brightness", err)
		} else {
			done("brightness → %d", *j.BrightnessOriginal)
		}
	}

	for _, c := range j.SysfsChanges {
		if err := e.Ops.WriteSysfs(c.Path, c.OriginalValue); err != nil {
			left.SysfsChanges = append(left.SysfsChanges, c)
			fail("restoring "+c.Path, err)
			continue
		}
		done("%s: %s → %s", c.Path, c.NewValue, c.OriginalValue)
	}

	// The wakeup interface is a toggle; a source flipped back here must not
	// be retried.
	for _, dev := range j.ACPIWakeupToggled {
		if err := e.Ops.ToggleWakeup(dev); err != nil {
			left.RecordWakeup(dev)
			fail("re-enabling wake for "+dev, err)
			continue
		}
		done("ACPI wake %s → enabled", dev)
	}

	switch {
	case len(j.KernelParamBackups) > 0:
		res.RebootRequired = true
		failed, err := e.Ops.RestoreBackups(j.KernelParamBackups)
		if len(failed) > 0 {
			left.KernelParamBackups = failed
			left.KernelParamsAdded = append(left.KernelParamsAdded, j.KernelParamsAdded...)
		}
		if err != nil {
			fail("restoring boot configuration", err)
		}
		if len(failed) < len(j.KernelParamBackups) {
			done("restored %d boot config file(s)", len(j.KernelParamBackups)-len(failed))
		}
	case len(j.KernelParamsAdded) > 0:
		res.RebootRequired = true
		if err := e.Ops.RemoveKernelParams(j.KernelParamsAdded); err != nil {
			left.KernelParamsAdded = append(left.KernelParamsAdded, j.KernelParamsAdded...)
			fail("removing kernel parameters", err)
		} else {
			done("removed kernel parameters %v", j.KernelParamsAdded)
		}
	}

	for _, name := range j.ServicesDisabled {
		if err := e.Ops.EnableService(name); err != nil {
			left.RecordService(name)
			fail("re-enabling "+name, err)
			continue
		}
		done("re-enabled %s", name)
	}

	for _, path := range j.ModprobeFilesCreated {
		if err := e.Ops.RemoveFile(path); err != nil {
			left.RecordModprobe(path)
			fail("removing "+path, err)
			continue
		}
		done("removed %s", path)
	}

	for _, path := range j.SystemdUnitsCreated {
		if err := e.Ops.RemoveUnit(path); err != nil {
			left.RecordUnit(path)
			fail("removing "+path, err)
			continue
		}
		done("removed %s", path)
	}

	res.Complete = left.Empty()
	if res.Complete {
		if err := e.Ops.RemoveState(); err != nil {
			failures = append(failures, err)
		}
	} else {
		if err := e.Ops.SaveState(left); err != nil {
			failures = append(failures, err)
		}
		log.Printf("[revert] incomplete: %d entries remain", left.Entries())
	}
	return res, errors.Join(failures...)
}

// SystemOps performs revert against the machine. Journal paths are
// resolved against Root.
type SystemOps struct {
	Root   sysfs.Root
	Runner system.Runner
	Wakeup *wakeup.Manager
	Store  journal.Store
}

func (o *SystemOps) RestoreBrightness(value uint64) error {
	return brightness.Restore(o.Root, value)
}

func (o *SystemOps) WriteSysfs(path, value string) error {
	return o.Root.Write(path, value)
}

func (o *SystemOps) ToggleWakeup(device string) error {
	return o.Wakeup.Toggle(device)
}

func (o *SystemOps) RestoreBackups(backups []journal.Backup) ([]journal.Backup, error) {
	ed := &bootloader.Editor{Root: o.Root, Runner: o.Runner}
	return ed.RestoreBackups(backups)
}

// RemoveKernelParams handles journals written before backups were kept:
// the parameters are stripped from whatever bootloader is present now.
func (o *SystemOps) RemoveKernelParams(params []string) error {
	ed, err := bootloader.Detect(o.Root, o.Runner)
	if err != nil {
		return err
	}
	_, err = ed.RemoveParams(params)
	return err
}

func (o *SystemOps) EnableService(name string) error {
	return system.Systemctl{R: o.Runner}.EnableService(name)
}

func (o *SystemOps) RemoveFile(path string) error {
	full := o.Root.Path(path)
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Path(errs.SysfsWrite, full, err)
	}
	return nil
}

// RemoveUnit disables the unit, deletes its file and reloads systemd.
func (o *SystemOps) RemoveUnit(path string) error {
	sc := system.Systemctl{R: o.Runner}
	name := filepath.Base(path)
	if err := sc.Disable(name); err != nil && o.Root.Exists(path) {
		return fmt.Errorf("disabling %s: %w", name, err)
	}
	if err := o.RemoveFile(path); err != nil {
		return err
	}
	if err := sc.DaemonReload(); err != nil {
		log.Printf("[revert] warning: daemon-reload: %v", err)
	}
	return nil
}

func (o *SystemOps) SaveState(j *journal.Journal) error { return o.Store.Save(j) }

func (o *SystemOps) RemoveState() error { return o.Store.Remove() }
