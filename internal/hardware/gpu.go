package hardware

import (
	"strconv"
	"strings"
)

// GPU describes the primary DRM card, plus the power state of a discrete
// card when a second one is present.
type GPU struct {
	Card           string `json:"card,omitempty"`
	Vendor         string `json:"vendor,omitempty"`
	Driver         string `json:"driver,omitempty"`
	DPMLevel       string `json:"dpm_level,omitempty"`
	ABMLevel       *int   `json:"abm_level,omitempty"`
	ABMCapable     bool   `json:"abm_capable"`
	DGPUCard       string `json:"dgpu_card,omitempty"`
	DGPUPowerState string `json:"dgpu_power_state,omitempty"`
}

func detectGPU(r *reader, cmdline string) GPU {
	var g GPU
	for _, entry := range r.list("sys/class/drm") {
		if !strings.HasPrefix(entry, "card") || strings.Contains(entry, "-") {
			continue
		}
		dev := "sys/class/drm/" + entry + "/device"
		if !r.root.Exists(dev) {
			continue
		}
		if g.Card == "" {
			g.Card = entry
			g.Vendor = r.str(dev + "/vendor")
			g.Driver = r.link(dev + "/driver")
			continue
		}
		if g.DGPUCard == "" {
			if state := r.str(dev + "/power_state"); state != "" {
				g.DGPUCard = entry
				g.DGPUPowerState = state
			}
		}
	}

	if !g.IsAMD() {
		return g
	}
	g.DPMLevel = r.str(g.DPMPath()[1:])

	for _, tok := range strings.Fields(cmdline) {
		if val, ok := strings.CutPrefix(tok, "amdgpu.abmlevel="); ok {
			if n, err := strconv.Atoi(val); err == nil {
				g.ABMLevel = &n
			}
			g.ABMCapable = true
		}
	}
	if !g.ABMCapable {
		if val := r.str("sys/module/amdgpu/parameters/abmlevel"); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				g.ABMLevel = &n
			}
			g.ABMCapable = true
		}
	}
	return g
}

// IsAMD reports an AMD GPU by PCI vendor ID or bound driver.
func (g GPU) IsAMD() bool { return g.Vendor == "0x1002" || g.Driver == "amdgpu" }

// DPMPath is the absolute DPM control file of the primary card.
func (g GPU) DPMPath() string {
	return "/sys/class/drm/" + g.Card + "/device/power_dpm_force_performance_level"
}
