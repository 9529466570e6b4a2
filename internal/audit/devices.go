package audit

import (
	"strconv"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
)

// Audio sysfs controls for snd_hda_intel.
const (
	AudioPowerSavePath  = "/sys/module/snd_hda_intel/parameters/power_save"
	AudioControllerPath = "/sys/module/snd_hda_intel/parameters/power_save_controller"
)

// Audio checks HDA codec power saving.
func Audio(_ *hardware.View, root sysfs.Root) []Finding {
	var out []Finding
	if v, ok, _ := root.ReadOptional(AudioPowerSavePath); ok {
		switch v {
		case "1":
		case "0":
			out = append(out, Finding{
				Severity: Low, Category: CatAudio, Weight: 2,
				Description: "HDA audio power saving is disabled",
				Current:     v, Recommended: "1",
				Impact: "Codec stays powered; about 0.3W",
				Path:   AudioPowerSavePath,
			})
		default:
			out = append(out, Finding{
				Severity: Info, Category: CatAudio, Weight: 1,
				Description: "HDA audio power-save timeout is long",
				Current:     v, Recommended: "1",
				Impact: "Codec powers down later than needed",
				Path:   AudioPowerSavePath,
			})
		}
	}
	if v, ok, _ := root.ReadOptional(AudioControllerPath); ok && v == "N" {
		out = append(out, Finding{
			Severity: Low, Category: CatAudio, Weight: 2,
			Description: "HDA controller power saving is disabled",
			Current:     v, Recommended: "Y",
			Impact: "Controller stays in D0 with the codec asleep",
			Path:   AudioControllerPath,
		})
	}
	return out
}

// Display reports backlight level and panel power features.
func Display(framework bool) Rule {
	return func(hw *hardware.View, root sysfs.Root) []Finding {
		var out []Finding
		if pct, path, ok := backlightPercent(root); ok && pct > 70 {
			out = append(out, Finding{
				Severity: Info, Category: CatDisplay, Weight: 0,
				Description: "Backlight is above 70%",
				Current:     strconv.Itoa(pct) + "%", Recommended: "≤ 50% on battery",
				Impact: "The panel is the largest single consumer at idle",
				Path:   path,
			})
		}
		if framework && edpConnected(root) {
			out = append(out, Finding{
				Severity: Info, Category: CatDisplay, Weight: 0,
				Description: "Internal eDP panel detected",
				Current:     "connected", Recommended: "keep panel self-refresh enabled",
				Impact: "PSR lets the panel hold static frames without the GPU",
			})
		}
		if v, ok := hw.KernelParamValue("amdgpu.dcdebugmask"); ok {
			out = append(out, Finding{
				Severity: Info, Category: CatDisplay, Weight: 0,
				Description: "amdgpu.dcdebugmask overrides display features",
				Current:     "amdgpu.dcdebugmask=" + v, Recommended: "(remove unless working around a bug)",
				Impact: "Common values disable PSR and cost 0.5W",
				Path:   "/proc/cmdline",
			})
		}
		return out
	}
}

func backlightPercent(root sysfs.Root) (int, string, bool) {
	devs, err := root.ListDir("sys/class/backlight")
	if err != nil || len(devs) == 0 {
		return 0, "", false
	}
	base := "/sys/class/backlight/" + devs[0] + "/"
	cur, err1 := readInt(root, base+"brightness")
	maxB, err2 := readInt(root, base+"max_brightness")
	if err1 != nil || err2 != nil || maxB <= 0 {
		return 0, "", false
	}
	return cur * 100 / maxB, base + "brightness", true
}

func edpConnected(root sysfs.Root) bool {
	conns, err := root.ListDir("sys/class/drm")
	if err != nil {
		return false
	}
	for _, c := range conns {
		if !strings.Contains(c, "-eDP-") {
			continue
		}
		if s, ok, _ := root.ReadOptional("sys/class/drm/" + c + "/status"); ok && s == "connected" {
			return true
		}
	}
	return false
}

// GPUPower checks DPM level and discrete GPU suspend.
func GPUPower(hw *hardware.View, _ sysfs.Root) []Finding {
	var out []Finding
	g := hw.GPU
	if g.IsAMD() && g.DPMLevel != "" && g.DPMLevel != "auto" {
		out = append(out, Finding{
			Severity: Medium, Category: CatGPU, Weight: 5,
			Description: "GPU DPM is forced to a fixed level",
			Current:     g.DPMLevel, Recommended: "auto",
			Impact: "The GPU cannot downclock at idle",
			Path:   g.DPMPath(),
		})
	}
	if g.DGPUCard != "" && g.DGPUPowerState != "D3cold" {
		out = append(out, Finding{
			Severity: Medium, Category: CatGPU, Weight: 7,
			Description: "Discrete GPU is not in D3cold",
			Current:     g.DGPUPowerState, Recommended: "D3cold",
			Impact: "An awake dGPU costs 3-8W; check what holds it open",
			Path:   "/sys/class/drm/" + g.DGPUCard + "/device/power_state",
		})
	}
	return out
}

// NetworkPower asks iw whether WiFi power saving is on.
func NetworkPower(r system.Runner) Rule {
	return func(hw *hardware.View, _ sysfs.Root) []Finding {
		iface := hw.Network.WifiInterface
		if iface == "" {
			return nil
		}
		out, err := system.WifiPowerSave(r, iface)
		if system.IsMissing(err) {
			return []Finding{{
				Severity: Info, Category: CatNetwork, Weight: 1,
				Description: "iw is not installed; WiFi power saving not checked",
				Current:     "unknown", Recommended: "install iw",
				Impact: "None",
			}}
		}
		if err != nil {
			return nil
		}
		if strings.Contains(out, "off") {
			return []Finding{{
				Severity: Medium, Category: CatNetwork, Weight: 5,
				Description: "WiFi power saving is off on " + iface,
				Current:     "off", Recommended: "on",
				Impact: "The radio stays awake between beacons; 0.5-1W",
			}}
		}
		return nil
	}
}

// ConflictingServices manage the same knobs bop does.
var ConflictingServices = []string{"tlp", "power-profiles-daemon", "thermald"}

// Services reports power daemons that would fight over settings, plus
// container runtimes that keep the CPU from idling.
func Services(q system.ServiceQuerier) Rule {
	return func(_ *hardware.View, _ sysfs.Root) []Finding {
		var out []Finding
		for _, name := range ConflictingServices {
			switch {
			case q.IsActive(name):
				out = append(out, Finding{
					Severity: High, Category: CatServices, Weight: 8,
					Description: name + " is running",
					Current:     "active", Recommended: "disabled",
					Impact: "It rewrites the same settings and undoes tuning",
				})
			case q.IsEnabled(name):
				out = append(out, Finding{
					Severity: Medium, Category: CatServices, Weight: 5,
					Description: name + " is enabled at boot",
					Current:     "enabled", Recommended: "disabled",
					Impact: "It will start on next boot and override tuning",
				})
			}
		}
		for _, name := range []string{"docker", "containerd"} {
			if q.IsActive(name) {
				out = append(out, Finding{
					Severity: Info, Category: CatServices, Weight: 0,
					Description: name + " is running",
					Current:     "active", Recommended: "start on demand",
					Impact: "Background runtimes add periodic wakeups",
				})
			}
		}
		return out
	}
}

// Sysctl paths bop inspects and tunes.
const (
	NMIWatchdogPath    = "/proc/sys/kernel/nmi_watchdog"
	DirtyWritebackPath = "/proc/sys/vm/dirty_writeback_centisecs"
)

// Sysctl checks the NMI watchdog and writeback interval.
func Sysctl(_ *hardware.View, root sysfs.Root) []Finding {
	var out []Finding
	if v, ok, _ := root.ReadOptional(NMIWatchdogPath); ok && v == "1" {
		out = append(out, Finding{
			Severity: Medium, Category: CatSysctl, Weight: 4,
			Description: "NMI watchdog is enabled",
			Current:     v, Recommended: "0",
			Impact: "Periodic perf-counter interrupts on every core",
			Path:   NMIWatchdogPath,
		})
	}
	if n, err := readInt(root, DirtyWritebackPath); err == nil && n < 1500 {
		out = append(out, Finding{
			Severity: Low, Category: CatSysctl, Weight: 2,
			Description: "Dirty page writeback runs often",
			Current:     strconv.Itoa(n), Recommended: "1500",
			Impact: "Disk wakes up every few seconds",
			Path:   DirtyWritebackPath,
		})
	}
	return out
}

func readInt(root sysfs.Root, rel string) (int, error) {
	s, err := root.Read(rel)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
