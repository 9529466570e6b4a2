package audit

import (
	"strconv"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/wakeup"
)

// KernelParams checks boot parameters that affect suspend drain and panel
// power.
func KernelParams(hw *hardware.View, _ sysfs.Root) []Finding {
	var out []Finding

	if v, ok := hw.KernelParamValue("acpi.ec_no_wakeup"); !ok {
		out = append(out, Finding{
			Severity: High, Category: CatKernel, Weight: 9,
			Description: "acpi.ec_no_wakeup is not set",
			Current:     "(absent)", Recommended: "acpi.ec_no_wakeup=1",
			Impact: "EC events wake the SoC during s2idle; suspend drain can double",
			Path:   "/proc/cmdline",
		})
	} else if v != "1" {
		out = append(out, Finding{
			Severity: Medium, Category: CatKernel, Weight: 7,
			Description: "acpi.ec_no_wakeup is not enabled",
			Current:     "acpi.ec_no_wakeup=" + v, Recommended: "acpi.ec_no_wakeup=1",
			Impact: "EC events wake the SoC during s2idle",
			Path:   "/proc/cmdline",
		})
	}

	if v, ok := hw.KernelParamValue("rtc_cmos.use_acpi_alarm"); !ok || v != "1" {
		cur := "(absent)"
		if ok {
			cur = "rtc_cmos.use_acpi_alarm=" + v
		}
		out = append(out, Finding{
			Severity: Medium, Category: CatKernel, Weight: 5,
			Description: "RTC wake alarms do not use the ACPI alarm",
			Current:     cur, Recommended: "rtc_cmos.use_acpi_alarm=1",
			Impact: "Scheduled wakeups from s2idle can be unreliable",
			Path:   "/proc/cmdline",
		})
	}

	if v, ok := hw.KernelParamValue("nvme_core.default_ps_max_latency_us"); ok && v == "0" {
		out = append(out, Finding{
			Severity: Medium, Category: CatKernel, Weight: 5,
			Description: "NVMe autonomous power states are disabled",
			Current:     "nvme_core.default_ps_max_latency_us=0", Recommended: "(remove)",
			Impact: "The SSD never enters its low-power states; 0.5-2W",
			Path:   "/proc/cmdline",
		})
	}

	if hw.GPU.IsAMD() {
		v, ok := hw.KernelParamValue("amdgpu.abmlevel")
		level, err := strconv.Atoi(v)
		switch {
		case !ok:
			out = append(out, Finding{
				Severity: Medium, Category: CatKernel, Weight: 5,
				Description: "Adaptive backlight management is not configured",
				Current:     "(absent)", Recommended: "amdgpu.abmlevel=3",
				Impact: "ABM trades panel contrast for 0.5-1W on bright screens",
				Path:   "/proc/cmdline",
			})
		case err != nil || level < 3:
			out = append(out, Finding{
				Severity: Low, Category: CatKernel, Weight: 3,
				Description: "Adaptive backlight management level is low",
				Current:     "amdgpu.abmlevel=" + v, Recommended: "amdgpu.abmlevel=3",
				Impact: "Higher ABM levels dim the backlight more aggressively",
				Path:   "/proc/cmdline",
			})
		}
	}
	return out
}

// Sleep checks wake sources and the suspend mode.
func Sleep(hw *hardware.View, root sysfs.Root) []Finding {
	var out []Finding
	m := wakeup.New(root)

	var idle []string
	for _, w := range hw.Platform.Wakeup {
		if !w.Enabled || !w.IsUSBController() || w.Device == wakeup.InternalController {
			continue
		}
		addr, _ := w.PCIAddress()
		if !m.HasDevices(addr) {
			idle = append(idle, w.Device)
		}
	}
	if len(idle) > 0 {
		out = append(out, Finding{
			Severity: Medium, Category: CatSleep, Weight: 6,
			Description: "USB controllers with nothing attached can wake the system",
			Current:     strings.Join(idle, ", ") + " enabled", Recommended: "disabled",
			Impact: "Spurious wakeups drain the battery in suspend",
			Path:   "/proc/acpi/wakeup",
		})
	}

	if ms := hw.Platform.MemSleep; ms != "" && ms != "s2idle" {
		out = append(out, Finding{
			Severity: Info, Category: CatSleep, Weight: 2,
			Description: "Suspend mode is not s2idle",
			Current:     ms, Recommended: "s2idle",
			Impact: "Modern-standby platforms are validated for s2idle only",
			Path:   "/sys/power/mem_sleep",
		})
	}
	return out
}
