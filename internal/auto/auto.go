// Package auto switches optimizations with the power source: applied when
// the machine goes on battery, reverted when AC returns. It is driven by a
// udev rule on power_supply change events.
package auto

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vesaa/bop/internal/apply"
	"github.com/vesaa/bop/internal/brightness"
	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/notify"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/profile"
	"github.com/vesaa/bop/internal/revert"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

// Outcome is what a run did.
type Outcome string

const (
	Applied     Outcome = "applied"
	Reverted    Outcome = "reverted"
	NoOp        Outcome = "noop"
	NoProfile   Outcome = "no-profile"
	NoACAdapter Outcome = "no-ac-adapter"
	Inhibited   Outcome = "inhibited"
)

// InhibitorMode decides what happens while systemd inhibitor locks are
// held.
type InhibitorMode string

const (
	InhibitSkip    InhibitorMode = "skip"
	InhibitReduced InhibitorMode = "reduced"
	InhibitFull    InhibitorMode = "full"
)

// ParseInhibitorMode accepts skip, reduced and full.
func ParseInhibitorMode(s string) (InhibitorMode, error) {
	switch m := InhibitorMode(s); m {
	case InhibitSkip, InhibitReduced, InhibitFull:
		return m, nil
	case "":
		return InhibitReduced, nil
	}
	return "", fmt.Errorf("unknown inhibitor mode %q (skip, reduced, full)", s)
}

// PlanMode maps the inhibitor state to a plan mode. ok is false when the
// run should be skipped.
func PlanMode(mode InhibitorMode, inhibitors []system.Inhibitor, aggressive bool) (m plan.Mode, ok bool) {
	base := plan.Normal
	if aggressive {
		base = plan.Aggressive
	}
	if len(inhibitors) == 0 {
		return base, true
	}
	switch mode {
	case InhibitSkip:
		return "", false
	case InhibitFull:
		return base, true
	}
	return plan.Reduced, true
}

// Switcher holds everything an auto run touches.
type Switcher struct {
	Root          sysfs.Root
	Runner        system.Runner
	Store         journal.Store
	LockPath      string
	UnitDir       string
	ModprobeDir   string
	Aggressive    bool
	InhibitorMode InhibitorMode
	Brightness    brightness.Settings
	Notify        bool
	Out           io.Writer

	Geteuid func() int
}

// Run performs one auto switch.
func (s *Switcher) Run() (Outcome, error) {
	geteuid := s.Geteuid
	if geteuid == nil {
		geteuid = unix.Geteuid
	}
	if geteuid() != 0 {
		return "", errs.RequireRoot("auto")
	}

	lock, ok, err := AcquireLock(s.Root.Path(s.LockPath))
	if err != nil {
		return "", fmt.Errorf("acquiring lock: %w", err)
	}
	if !ok {
		log.Printf("[auto] another run holds %s", s.LockPath)
		return NoOp, nil
	}
	defer lock.Release()

	hw, err := hardware.Detect(s.Root)
	if err != nil {
		return "", err
	}
	if !hw.AC.Found {
		return s.report(NoACAdapter, "no AC adapter detected"), nil
	}
	prof, err := profile.Detect(hw)
	if err != nil {
		return s.report(NoProfile, "no hardware profile matched"), nil
	}
	prior, err := s.Store.Load()
	if err != nil {
		return "", err
	}

	switch {
	case hw.AC.OnBattery() && prior == nil:
		return s.apply(hw, prof)
	case hw.AC.OnAC() && prior != nil:
		return s.revert(prior)
	}
	return NoOp, nil
}

func (s *Switcher) apply(hw *hardware.View, prof *profile.Profile) (Outcome, error) {
	inhibitors := system.Inhibitors(s.Runner)
	mode, ok := PlanMode(s.InhibitorMode, inhibitors, s.Aggressive)
	if !ok {
		return s.report(Inhibited, fmt.Sprintf("on battery, %d inhibitor(s) active; skipping", len(inhibitors))), nil
	}

	svc := system.Systemctl{R: s.Runner}
	p := plan.Builder{Root: s.Root, Services: svc, Mode: mode}.Build(hw)
	ops := &apply.SystemOps{
		Root:        s.Root,
		Runner:      s.Runner,
		Wakeup:      wakeup.New(s.Root),
		Store:       s.Store,
		UnitDir:     s.UnitDir,
		ModprobeDir: s.ModprobeDir,
	}
	e := &apply.Engine{Root: s.Root, Ops: ops, Services: svc, Out: s.out(), Geteuid: s.Geteuid}
	j, err := e.Run(hw, p)
	if j != nil {
		dimmed, derr := brightness.Dim(s.Root, s.Brightness)
		if derr != nil {
			log.Printf("[auto] warning: dimming backlight: %v", derr)
		}
		if dimmed != nil {
			j.BrightnessOriginal = dimmed
			err = errors.Join(err, ops.SaveState(j))
		}
	}
	if err != nil {
		s.syslog("err", "apply failed: "+err.Error())
		return Applied, err
	}
	msg := fmt.Sprintf("on battery: %d optimizations applied (%s, %s mode)", len(p.SysfsWrites), prof.Name, mode)
	return s.report(Applied, msg), nil
}

func (s *Switcher) revert(j *journal.Journal) (Outcome, error) {
	ops := &revert.SystemOps{
		Root:   s.Root,
		Runner: s.Runner,
		Wakeup: wakeup.New(s.Root),
		Store:  s.Store,
	}
	res, err := (&revert.Engine{Ops: ops, Out: s.out()}).Run(j)
	if err != nil {
		s.syslog("err", fmt.Sprintf("revert incomplete, %d entries remain: %v", res.Remaining.Entries(), err))
		return Reverted, err
	}
	return s.report(Reverted, fmt.Sprintf("on AC: %d changes reverted", res.Undone)), nil
}

// report logs the outcome to syslog and, for state changes, the desktop.
func (s *Switcher) report(o Outcome, msg string) Outcome {
	log.Printf("[auto] %s: %s", o, msg)
	s.syslog("info", msg)
	if s.Notify && (o == Applied || o == Reverted) {
		title := "Battery optimizations on"
		if o == Reverted {
			title = "Battery optimizations off"
		}
		_ = notify.Notifier{R: s.Runner}.Send(title, msg)
	}
	return o
}

func (s *Switcher) syslog(prio, msg string) {
	if err := system.Syslog(s.Runner, "bop", prio, msg); err != nil {
		log.Printf("[auto] warning: syslog: %v", err)
	}
}

func (s *Switcher) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

// Status is what `bop auto status` shows.
type Status struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	Aggressive bool `json:"aggressive" yaml:"aggressive"`
	ACFound    bool `json:"ac_found" yaml:"ac_found"`
	OnAC       bool `json:"on_ac" yaml:"on_ac"`
	Applied    bool `json:"applied" yaml:"applied"`
}

// CurrentStatus reads the rule, the power source and the journal.
func CurrentStatus(root sysfs.Root, rule Rule, store journal.Store) Status {
	var st Status
	st.Enabled, st.Aggressive = rule.Installed()
	if hw, err := hardware.Detect(root); err == nil {
		st.ACFound, st.OnAC = hw.AC.Found, hw.AC.OnAC()
	}
	st.Applied = store.Exists()
	return st
}
