// Package apply executes a plan against the machine, recording every
// mutation in the journal and persisting it at fixed checkpoints so a
// failure part way through is still fully revertible.
package apply

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
)

// ConflictingServices refuse apply while active.
var ConflictingServices = []string{"tlp"}

// Engine runs plans.
type Engine struct {
	Root sysfs.Root
	Ops  Ops
	// Services is consulted for conflicting power managers; nil skips the
	// check.
	Services system.ServiceQuerier
	// Prior is the journal already on disk, if any. A re-apply extends it.
	Prior  *journal.Journal
	DryRun bool
	Out    io.Writer

	Now     func() time.Time
	Geteuid func() int
}

type run struct {
	e *Engine
	j *journal.Journal
	// dirty is set by every recorded mutation and cleared by a fence.
	dirty bool
}

// Run executes p and returns the resulting journal. A dry run prints what
// would change and returns nil. On failure the returned journal is the one
// persisted, covering every step that completed.
func (e *Engine) Run(hw *hardware.View, p *plan.Plan) (*journal.Journal, error) {
	if err := e.preflight(); err != nil {
		return nil, err
	}
	if e.DryRun {
		e.trace(p)
		return nil, nil
	}

	r := &run{e: e, j: e.start()}
	if err := r.execute(hw, p); err != nil {
		if r.dirty {
			if serr := e.Ops.SaveState(r.j); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		log.Printf("[apply] aborted after %d journal entries: %v", r.j.Entries(), err)
		return r.j, err
	}
	return r.j, nil
}

func (e *Engine) preflight() error {
	geteuid := e.Geteuid
	if geteuid == nil {
		geteuid = unix.Geteuid
	}
	if !e.DryRun && geteuid() != 0 {
		return errs.RequireRoot("apply")
	}
	if e.Services == nil {
		return nil
	}
	for _, name := range ConflictingServices {
		if e.Services.IsActive(name) {
			return errs.New(errs.ConflictingService,
				"%s is currently running. Stop it first: sudo systemctl stop %s && sudo systemctl disable %s",
				strings.ToUpper(name), name, name)
		}
	}
	return nil
}

func (e *Engine) start() *journal.Journal {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	var j *journal.Journal
	if e.Prior != nil {
		j = e.Prior.Clone()
		j.Timestamp = now().Format(time.RFC3339)
	} else {
		j = journal.New(now())
	}
	return j
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// fence persists the journal if anything was recorded since the last one.
func (r *run) fence() error {
	if !r.dirty {
		return nil
	}
	if err := r.e.Ops.SaveState(r.j); err != nil {
		return fmt.Errorf("saving journal: %w", err)
	}
	r.dirty = false
	return nil
}

func (r *run) execute(hw *hardware.View, p *plan.Plan) error {
	e, w := r.e, r.e.out()

	for _, pw := range p.SysfsWrites {
		original, _ := e.Root.ReadValue(pw.Path)
		if err := e.Ops.WriteSysfs(pw.Path, pw.Value); err != nil {
			fmt.Fprintf(w, "  ✗ %s: %v\n", pw.Description, err)
			return err
		}
		r.j.RecordSysfs(pw.Path, original, pw.Value)
		r.dirty = true
		fmt.Fprintf(w, "  ✓ %s\n", pw.Description)
	}

	for _, dev := range p.ACPIWakeupDisable {
		enabled, err := e.Ops.WakeupEnabled(dev)
		if err != nil {
			log.Printf("[apply] warning: reading wake state of %s: %v", dev, err)
			continue
		}
		if !enabled {
			continue
		}
		if err := e.Ops.ToggleWakeup(dev); err != nil {
			log.Printf("[apply] warning: disabling wake for %s: %v", dev, err)
			fmt.Fprintf(w, "  ✗ ACPI wake %s: %v\n", dev, err)
			continue
		}
		r.j.RecordWakeup(dev)
		r.dirty = true
		fmt.Fprintf(w, "  ✓ ACPI wake %s → disabled\n", dev)
	}
	if err := r.fence(); err != nil {
		return err
	}

	if len(p.KernelParams) > 0 {
		backups, err := e.Ops.AddKernelParams(p.KernelParams)
		if err != nil && len(backups) == 0 {
			fmt.Fprintf(w, "  ✗ kernel parameters: %v\n", err)
			return err
		}
		// A GRUB regeneration failure still leaves edited files behind.
		r.j.MergeBackups(backups)
		r.j.RecordKernelParams(p.KernelParams)
		r.dirty = true
		if err != nil {
			fmt.Fprintf(w, "  ✗ kernel parameters: %v\n", err)
			return err
		}
		fmt.Fprintf(w, "  ✓ kernel parameters: %s (reboot required)\n", strings.Join(p.KernelParams, " "))
		if err := r.fence(); err != nil {
			return err
		}
	}

	for _, name := range p.ServicesToDisable {
		if err := e.Ops.DisableService(name); err != nil {
			fmt.Fprintf(w, "  ✗ disable %s: %v\n", name, err)
			return err
		}
		r.j.RecordService(name)
		r.dirty = true
		fmt.Fprintf(w, "  ✓ disabled %s\n", name)
	}
	if err := r.fence(); err != nil {
		return err
	}

	for _, cfg := range p.ModprobeConfigs {
		path, err := e.Ops.WriteModprobe(cfg)
		if err != nil {
			fmt.Fprintf(w, "  ✗ modprobe %s: %v\n", cfg.Filename, err)
			return err
		}
		r.j.RecordModprobe(path)
		r.dirty = true
		fmt.Fprintf(w, "  ✓ wrote %s\n", path)
	}
	if err := r.fence(); err != nil {
		return err
	}

	if p.SystemdService && len(p.SysfsWrites) > 0 {
		path, err := e.Ops.GenerateUnit(hw, p)
		if err != nil {
			fmt.Fprintf(w, "  ✗ persistence unit: %v\n", err)
			return err
		}
		r.j.RecordUnit(path)
		r.dirty = true
		if err := r.fence(); err != nil {
			return err
		}
		if err := e.Ops.EnableUnit(); err != nil {
			fmt.Fprintf(w, "  ✗ enable %s: %v\n", UnitName, err)
			return err
		}
		fmt.Fprintf(w, "  ✓ %s enabled\n", UnitName)
	}
	return nil
}

// trace prints the plan without touching anything.
func (e *Engine) trace(p *plan.Plan) {
	w := e.out()
	fmt.Fprintln(w, "Dry run, no changes will be made:")
	for _, pw := range p.SysfsWrites {
		fmt.Fprintf(w, "  → %s (%s = %s)\n", pw.Description, pw.Path, pw.Value)
	}
	for _, dev := range p.ACPIWakeupDisable {
		fmt.Fprintf(w, "  → disable ACPI wake for %s\n", dev)
	}
	if len(p.KernelParams) > 0 {
		fmt.Fprintf(w, "  → add kernel parameters: %s\n", strings.Join(p.KernelParams, " "))
	}
	for _, name := range p.ServicesToDisable {
		fmt.Fprintf(w, "  → disable service %s\n", name)
	}
	for _, cfg := range p.ModprobeConfigs {
		fmt.Fprintf(w, "  → write modprobe config %s\n", cfg.Filename)
	}
	if p.SystemdService && len(p.SysfsWrites) > 0 {
		fmt.Fprintf(w, "  → install and enable %s\n", UnitName)
	}
	if p.Empty() {
		fmt.Fprintln(w, "  nothing to do")
	}
}
