// Package status reports whether each change in the journal is still in
// force. It only reads, so running it alongside apply is safe but advisory.
package status

import (
	"strings"

	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

// Sysfs is one recorded write. Actual is nil when the file is gone.
type Sysfs struct {
	Path     string  `json:"path" yaml:"path"`
	Expected string  `json:"expected" yaml:"expected"`
	Actual   *string `json:"actual" yaml:"actual"`
	Active   bool    `json:"active" yaml:"active"`
}

// Wakeup is active while the source is still disabled.
type Wakeup struct {
	Device string `json:"device" yaml:"device"`
	Active bool   `json:"active" yaml:"active"`
}

// KernelParam is not InCmdline until the next reboot.
type KernelParam struct {
	Param     string `json:"param" yaml:"param"`
	InCmdline bool   `json:"in_cmdline" yaml:"in_cmdline"`
}

type Service struct {
	Name         string `json:"name" yaml:"name"`
	StillStopped bool   `json:"still_stopped" yaml:"still_stopped"`
}

type File struct {
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
}

// Report is the full status.
type Report struct {
	Timestamp     string        `json:"timestamp" yaml:"timestamp"`
	Sysfs         []Sysfs       `json:"sysfs" yaml:"sysfs"`
	ACPIWakeup    []Wakeup      `json:"acpi_wakeup" yaml:"acpi_wakeup"`
	KernelParams  []KernelParam `json:"kernel_params" yaml:"kernel_params"`
	Services      []Service     `json:"services" yaml:"services"`
	SystemdUnits  []File        `json:"systemd_units" yaml:"systemd_units"`
	ModprobeFiles []File        `json:"modprobe_files" yaml:"modprobe_files"`
}

// Total counts tracked changes.
func (r *Report) Total() int {
	return len(r.Sysfs) + len(r.ACPIWakeup) + len(r.KernelParams) + len(r.Services) +
		len(r.SystemdUnits) + len(r.ModprobeFiles)
}

// Active counts changes verified in force.
func (r *Report) Active() int {
	n := 0
	for _, s := range r.Sysfs {
		n += b2i(s.Active)
	}
	for _, w := range r.ACPIWakeup {
		n += b2i(w.Active)
	}
	for _, k := range r.KernelParams {
		n += b2i(k.InCmdline)
	}
	for _, s := range r.Services {
		n += b2i(s.StillStopped)
	}
	for _, f := range r.SystemdUnits {
		n += b2i(f.Exists)
	}
	for _, f := range r.ModprobeFiles {
		n += b2i(f.Exists)
	}
	return n
}

// Drifted counts changes no longer in force.
func (r *Report) Drifted() int { return r.Total() - r.Active() }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Checker compares a journal with the live machine.
type Checker struct {
	Root     sysfs.Root
	Services system.ServiceQuerier
	// WakeupPath defaults to /proc/acpi/wakeup.
	WakeupPath string
}

// Check builds the report for j.
func (c Checker) Check(j *journal.Journal) *Report {
	r := &Report{Timestamp: j.Timestamp}

	for _, ch := range j.SysfsChanges {
		s := Sysfs{Path: ch.Path, Expected: strings.TrimSpace(ch.NewValue)}
		if v, err := c.Root.ReadValue(ch.Path); err == nil {
			s.Actual = &v
			s.Active = v == s.Expected
		}
		r.Sysfs = append(r.Sysfs, s)
	}

	path := c.WakeupPath
	if path == "" {
		path = wakeup.DefaultPath
	}
	table, _ := c.Root.Read(path)
	for _, dev := range j.ACPIWakeupToggled {
		r.ACPIWakeup = append(r.ACPIWakeup, Wakeup{Device: dev, Active: wakeDisabled(table, dev)})
	}

	cmdline, _ := c.Root.Read("/proc/cmdline")
	tokens := strings.Fields(cmdline)
	for _, p := range j.KernelParamsAdded {
		r.KernelParams = append(r.KernelParams, KernelParam{Param: p, InCmdline: contains(tokens, p)})
	}

	for _, name := range j.ServicesDisabled {
		stopped := true
		if c.Services != nil {
			stopped = !c.Services.IsActive(name) && !c.Services.IsEnabled(name)
		}
		r.Services = append(r.Services, Service{Name: name, StillStopped: stopped})
	}

	for _, p := range j.SystemdUnitsCreated {
		r.SystemdUnits = append(r.SystemdUnits, File{Path: p, Exists: c.Root.Exists(p)})
	}
	for _, p := range j.ModprobeFilesCreated {
		r.ModprobeFiles = append(r.ModprobeFiles, File{Path: p, Exists: c.Root.Exists(p)})
	}
	return r
}

func wakeDisabled(table, device string) bool {
	for _, line := range strings.Split(table, "\n") {
		f := strings.Fields(line)
		if len(f) > 0 && f[0] == device && contains(f, "*disabled") {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
