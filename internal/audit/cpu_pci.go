package audit

import (
	"fmt"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
)

// CPUPower checks EPP, platform profile, governor and pstate mode.
func CPUPower(hw *hardware.View, _ sysfs.Root) []Finding {
	var out []Finding
	cpu := hw.CPU

	switch cpu.EPP {
	case "", "balance_power", "power":
	case "performance":
		out = append(out, Finding{
			Severity: High, Category: CatCPU, Weight: 8,
			Description: "CPU energy preference is set to performance",
			Current:     cpu.EPP, Recommended: "balance_power",
			Impact: "Cores hold high clocks at idle; typically 3-5W extra",
			Path:   hardware.EPPPath(0),
		})
	case "balance_performance":
		out = append(out, Finding{
			Severity: Medium, Category: CatCPU, Weight: 6,
			Description: "CPU energy preference favours performance",
			Current:     cpu.EPP, Recommended: "balance_power",
			Impact: "1-3W higher idle draw",
			Path:   hardware.EPPPath(0),
		})
	default:
		out = append(out, Finding{
			Severity: Info, Category: CatCPU, Weight: 1,
			Description: "CPU energy preference is not a power-saving value",
			Current:     cpu.EPP, Recommended: "balance_power",
			Impact: "Minor",
			Path:   hardware.EPPPath(0),
		})
	}

	switch hw.Platform.Profile {
	case "performance":
		out = append(out, Finding{
			Severity: High, Category: CatCPU, Weight: 7,
			Description: "Platform profile is performance",
			Current:     "performance", Recommended: "low-power",
			Impact: "Firmware raises power limits and fan curves",
			Path:   hardware.PlatformProfilePath(),
		})
	case "balanced":
		out = append(out, Finding{
			Severity: Low, Category: CatCPU, Weight: 3,
			Description: "Platform profile is balanced",
			Current:     "balanced", Recommended: "low-power",
			Impact: "Slightly higher sustained power limits on battery",
			Path:   hardware.PlatformProfilePath(),
		})
	}

	if cpu.IsAMDPstate() && cpu.Governor != "" && cpu.Governor != "powersave" {
		out = append(out, Finding{
			Severity: Medium, Category: CatCPU, Weight: 4,
			Description: "Scaling governor is not powersave",
			Current:     cpu.Governor, Recommended: "powersave",
			Impact: "With amd-pstate the powersave governor defers to EPP",
			Path:   "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor",
		})
	}

	if cpu.PstateMode == "active" {
		out = append(out, Finding{
			Severity: Info, Category: CatCPU, Weight: 0,
			Description: "amd-pstate runs in active (EPP) mode",
			Current:     "active", Recommended: "active",
			Impact: "Good: EPP hints alone can save 1-2W",
			Path:   "/sys/devices/system/cpu/amd_pstate/status",
		})
	}
	return out
}

// ASPMTarget is the ASPM policy bop aims for.
func ASPMTarget(aggressive bool) string {
	if aggressive {
		return "powersupersave"
	}
	return "powersave"
}

// PCIPower checks the ASPM policy and per-device runtime PM.
func PCIPower(aggressive bool) Rule {
	return func(hw *hardware.View, _ sysfs.Root) []Finding {
		var out []Finding
		target := ASPMTarget(aggressive)

		switch policy := hw.PCI.ASPMPolicy; policy {
		case "default":
			out = append(out, Finding{
				Severity: Medium, Category: CatPCI, Weight: 6,
				Description: "PCIe ASPM policy is firmware default",
				Current:     policy, Recommended: target,
				Impact: "Links may stay in L0; 0.5-2W",
				Path:   hardware.ASPMPath(),
			})
		case "performance":
			out = append(out, Finding{
				Severity: High, Category: CatPCI, Weight: 8,
				Description: "PCIe ASPM is disabled by the performance policy",
				Current:     policy, Recommended: target,
				Impact: "No link power saving at all; 1-3W",
				Path:   hardware.ASPMPath(),
			})
		case "powersave":
			if aggressive {
				out = append(out, Finding{
					Severity: Low, Category: CatPCI, Weight: 3,
					Description: "PCIe ASPM could use L1 substates",
					Current:     policy, Recommended: target,
					Impact: "powersupersave adds L1.1/L1.2",
					Path:   hardware.ASPMPath(),
				})
			}
		}

		var on []string
		for _, d := range hw.PCI.Devices {
			if d.RuntimeControl != "" && d.RuntimeControl != "auto" {
				on = append(on, d.Address)
			}
		}
		if len(on) > 0 {
			out = append(out, Finding{
				Severity: Medium, Category: CatPCI, Weight: 5,
				Description: fmt.Sprintf("%d PCI devices have runtime PM disabled", len(on)),
				Current:     "on", Recommended: "auto",
				Impact: "Idle devices cannot enter D3: " + strings.Join(on, ", "),
			})
		}
		return out
	}
}

// USBPower reports devices with autosuspend disabled. Input devices are
// skipped unless aggressive, since suspending them adds wake latency.
func USBPower(aggressive bool) Rule {
	return func(hw *hardware.View, _ sysfs.Root) []Finding {
		var out []Finding
		for _, u := range hw.USB {
			if u.Control == "" || u.Control == "auto" {
				continue
			}
			if u.IsInput() && !aggressive {
				continue
			}
			name := u.Product
			if name == "" {
				name = u.Name
			}
			out = append(out, Finding{
				Severity: Low, Category: CatUSB, Weight: 2,
				Description: "USB autosuspend is disabled for " + name,
				Current:     u.Control, Recommended: "auto",
				Impact: "Device keeps its port powered while idle",
				Path:   hardware.USBControlPath(u.Name),
			})
		}
		return out
	}
}
