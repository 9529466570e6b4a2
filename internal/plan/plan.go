// Package plan diffs the live machine against bop's target policy and
// produces an ordered ApplyPlan. Building a plan never mutates anything.
package plan

import (
	"fmt"
	"strconv"

	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

// Mode selects how far the plan goes.
type Mode string

const (
	Normal     Mode = "normal"
	Aggressive Mode = "aggressive"
	// Reduced plans runtime sysfs writes only: no kernel parameters, no
	// service changes, no wakeup toggles.
	Reduced Mode = "reduced"
)

// ParseMode accepts the three mode names.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Normal, Aggressive, Reduced:
		return m, nil
	case "":
		return Normal, nil
	}
	return "", fmt.Errorf("unknown policy mode %q (normal, aggressive, reduced)", s)
}

// PlannedWrite is one sysfs value change.
type PlannedWrite struct {
	Path        string `json:"path" yaml:"path"`
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// ModprobeConfig is a file to drop into /etc/modprobe.d.
type ModprobeConfig struct {
	Filename string `json:"filename" yaml:"filename"`
	Content  string `json:"content" yaml:"content"`
}

// Plan is the ordered set of changes apply will make.
type Plan struct {
	SysfsWrites       []PlannedWrite   `json:"sysfs_writes" yaml:"sysfs_writes"`
	KernelParams      []string         `json:"kernel_params" yaml:"kernel_params"`
	ServicesToDisable []string         `json:"services_to_disable" yaml:"services_to_disable"`
	ACPIWakeupDisable []string         `json:"acpi_wakeup_disable" yaml:"acpi_wakeup_disable"`
	SystemdService    bool             `json:"systemd_service" yaml:"systemd_service"`
	ModprobeConfigs   []ModprobeConfig `json:"modprobe_configs" yaml:"modprobe_configs"`
}

// Empty reports a plan with nothing to do.
func (p *Plan) Empty() bool {
	return len(p.SysfsWrites) == 0 && len(p.KernelParams) == 0 && len(p.ServicesToDisable) == 0 &&
		len(p.ACPIWakeupDisable) == 0 && len(p.ModprobeConfigs) == 0
}

// ServicesToDisable manage the same knobs bop tunes.
var ServicesToDisable = []string{"tlp", "power-profiles-daemon"}

// Builder holds what plan construction reads besides the hardware view.
type Builder struct {
	Root     sysfs.Root
	Services system.ServiceQuerier
	Mode     Mode
}

// Build returns the plan for hw. Calling it twice on the same machine
// state yields equal plans.
func (b Builder) Build(hw *hardware.View) *Plan {
	p := &Plan{}
	aggressive := b.Mode == Aggressive

	// CPU EPP, per core in numeric order.
	eppTarget := "balance_power"
	if aggressive {
		eppTarget = "power"
	}
	for _, core := range hw.CPU.Cores {
		path := hardware.EPPPath(core)
		if cur, _ := b.read(path); cur == "power" {
			continue
		}
		b.want(p, path, eppTarget, fmt.Sprintf("CPU%d EPP → %s", core, eppTarget))
	}

	// Platform profile. Normal mode only steps down from performance.
	if hw.Platform.Profile == "performance" || (aggressive && hw.Platform.Profile != "") {
		if contains(hw.Platform.ProfileChoices, "low-power") {
			b.want(p, hardware.PlatformProfilePath(), "low-power", "Platform profile → low-power")
		}
	}

	// PCIe ASPM. Never downgrade powersupersave to powersave.
	aspm := audit.ASPMTarget(aggressive)
	if cur := hw.PCI.ASPMPolicy; cur != "" && !(cur == "powersupersave" && !aggressive) {
		if len(hw.PCI.ASPMChoices) == 0 || contains(hw.PCI.ASPMChoices, aspm) {
			b.want(p, hardware.ASPMPath(), aspm, "PCIe ASPM → "+aspm)
		}
	}

	// PCI runtime PM in bus address order.
	for _, d := range hw.PCI.Devices {
		if d.RuntimeControl != "" && d.RuntimeControl != "auto" {
			b.want(p, hardware.RuntimePMPath(d.Address), "auto", "Runtime PM "+d.Address+" → auto")
		}
	}

	// Remaining categories, fixed order.
	for _, u := range hw.USB {
		if u.Control == "" || u.Control == "auto" || (u.IsInput() && !aggressive) {
			continue
		}
		b.want(p, hardware.USBControlPath(u.Name), "auto", "USB autosuspend "+u.Name+" → auto")
	}

	audioBefore := len(p.SysfsWrites)
	b.want(p, audit.AudioPowerSavePath, "1", "HDA audio power_save → 1")
	b.want(p, audit.AudioControllerPath, "Y", "HDA power_save_controller → Y")
	if aggressive && len(p.SysfsWrites) > audioBefore {
		p.ModprobeConfigs = append(p.ModprobeConfigs, ModprobeConfig{
			Filename: "bop-audio.conf",
			Content:  "# Managed by bop\noptions snd_hda_intel power_save=1 power_save_controller=Y\n",
		})
	}

	if hw.GPU.IsAMD() && hw.GPU.DPMLevel != "" {
		b.want(p, hw.GPU.DPMPath(), "auto", "GPU DPM → auto")
	}

	b.want(p, audit.NMIWatchdogPath, "0", "NMI watchdog → off")
	if cur, ok := b.read(audit.DirtyWritebackPath); ok {
		if n, err := strconv.Atoi(cur); err == nil && n < 1500 {
			b.want(p, audit.DirtyWritebackPath, "1500", "Dirty writeback → 15s")
		}
	}

	if aggressive && hw.CPU.BoostPresent {
		b.want(p, "/sys/devices/system/cpu/cpufreq/boost", "0", "CPU boost → off")
	}

	p.SystemdService = len(p.SysfsWrites) > 0
	if b.Mode == Reduced {
		return p
	}

	p.KernelParams = kernelParams(hw)

	if b.Services != nil {
		for _, name := range ServicesToDisable {
			if b.Services.IsActive(name) || b.Services.IsEnabled(name) {
				p.ServicesToDisable = append(p.ServicesToDisable, name)
			}
		}
	}

	// TODO: decide whether NHI* (USB4) wake sources should be disabled too;
	// they stay enabled until dock wake-up is verified without them.
	m := wakeup.New(b.Root)
	for _, w := range hw.Platform.Wakeup {
		if !w.Enabled || !w.IsUSBController() || w.Device == wakeup.InternalController {
			continue
		}
		addr, _ := w.PCIAddress()
		if !m.HasDevices(addr) {
			p.ACPIWakeupDisable = append(p.ACPIWakeupDisable, w.Device)
		}
	}
	return p
}

// kernelParams lists the boot parameters whose live value differs from
// the target.
func kernelParams(hw *hardware.View) []string {
	var out []string
	for _, kv := range [][2]string{
		{"acpi.ec_no_wakeup", "1"},
		{"rtc_cmos.use_acpi_alarm", "1"},
	} {
		if v, ok := hw.KernelParamValue(kv[0]); !ok || v != kv[1] {
			out = append(out, kv[0]+"="+kv[1])
		}
	}
	if hw.GPU.IsAMD() {
		v, ok := hw.KernelParamValue("amdgpu.abmlevel")
		if n, err := strconv.Atoi(v); !ok || err != nil || n < 3 {
			out = append(out, "amdgpu.abmlevel=3")
		}
	}
	return out
}

func (b Builder) read(path string) (string, bool) {
	v, ok, err := b.Root.ReadOptional(path)
	return sysfs.Selected(v), ok && err == nil
}

// want appends a write when path exists and holds something other than
// value. Choice lists compare by their selected entry.
func (b Builder) want(p *Plan, path, value, desc string) {
	cur, ok := b.read(path)
	if !ok || cur == value {
		return
	}
	p.SysfsWrites = append(p.SysfsWrites, PlannedWrite{Path: path, Value: value, Description: desc})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
