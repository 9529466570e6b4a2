package apply

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vesaa/bop/internal/bootloader"
	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

// Ops is every side effect apply performs. The engine only talks to the
// machine through it.
type Ops interface {
	WriteSysfs(path, value string) error
	WakeupEnabled(device string) (bool, error)
	ToggleWakeup(device string) error
	AddKernelParams(params []string) ([]journal.Backup, error)
	DisableService(name string) error
	WriteModprobe(cfg plan.ModprobeConfig) (string, error)
	GenerateUnit(hw *hardware.View, p *plan.Plan) (string, error)
	EnableUnit() error
	SaveState(j *journal.Journal) error
}

// SystemOps performs the operations for real. Paths recorded in the
// journal are relative to Root.
type SystemOps struct {
	Root        sysfs.Root
	Runner      system.Runner
	Wakeup      *wakeup.Manager
	Store       journal.Store
	UnitDir     string
	ModprobeDir string
}

func (o *SystemOps) WriteSysfs(path, value string) error {
	return o.Root.Write(path, value)
}

func (o *SystemOps) WakeupEnabled(device string) (bool, error) {
	return o.Wakeup.IsEnabled(device)
}

func (o *SystemOps) ToggleWakeup(device string) error {
	return o.Wakeup.Toggle(device)
}

func (o *SystemOps) AddKernelParams(params []string) ([]journal.Backup, error) {
	ed, err := bootloader.Detect(o.Root, o.Runner)
	if err != nil {
		return nil, err
	}
	return ed.AddParams(params)
}

func (o *SystemOps) DisableService(name string) error {
	return system.Systemctl{R: o.Runner}.DisableService(name)
}

func (o *SystemOps) WriteModprobe(cfg plan.ModprobeConfig) (string, error) {
	rel := filepath.Join(o.ModprobeDir, cfg.Filename)
	path := o.Root.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Path(errs.SysfsWrite, path, err)
	}
	if err := os.WriteFile(path, []byte(cfg.Content), 0o644); err != nil {
		return "", errs.Path(errs.SysfsWrite, path, err)
	}
	return rel, nil
}

func (o *SystemOps) GenerateUnit(hw *hardware.View, p *plan.Plan) (string, error) {
	rel := filepath.Join(o.UnitDir, UnitName)
	path := o.Root.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Path(errs.SysfsWrite, path, err)
	}
	if err := os.WriteFile(path, []byte(UnitContent(hw, p)), 0o644); err != nil {
		return "", errs.Path(errs.SysfsWrite, path, err)
	}
	return rel, nil
}

func (o *SystemOps) EnableUnit() error {
	sc := system.Systemctl{R: o.Runner}
	if err := sc.DaemonReload(); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if err := sc.Enable(UnitName); err != nil {
		return fmt.Errorf("enabling %s: %w", UnitName, err)
	}
	return nil
}

func (o *SystemOps) SaveState(j *journal.Journal) error {
	return o.Store.Save(j)
}
