package hardware

import (
	"sort"
	"strconv"
	"strings"
)

const cpuBase = "sys/devices/system/cpu/"

// CPU describes the processor and its frequency-scaling driver as seen
// through cpu0.
type CPU struct {
	ModelName     string   `json:"model_name"`
	Vendor        string   `json:"vendor"`
	Family        int      `json:"family"`
	Model         int      `json:"model"`
	ScalingDriver string   `json:"scaling_driver"`
	Governor      string   `json:"governor"`
	EPP           string   `json:"epp"`
	EPPAvailable  []string `json:"epp_available"`
	Cores         []int    `json:"cores"`
	BoostPresent  bool     `json:"boost_present"`
	BoostEnabled  bool     `json:"boost_enabled"`
	PstateMode    string   `json:"pstate_mode,omitempty"`
}

func detectCPU(r *reader) CPU {
	var c CPU
	parseCPUInfo(r.str("proc/cpuinfo"), &c)

	freq := cpuBase + "cpu0/cpufreq/"
	c.ScalingDriver = r.str(freq + "scaling_driver")
	c.Governor = r.str(freq + "scaling_governor")
	c.EPP = r.str(freq + "energy_performance_preference")
	c.EPPAvailable = strings.Fields(r.str(freq + "energy_performance_available_preferences"))

	for _, name := range r.list(cpuBase) {
		if n, ok := cpuIndex(name); ok {
			c.Cores = append(c.Cores, n)
		}
	}
	sort.Ints(c.Cores)

	if boost := r.str(cpuBase + "cpufreq/boost"); boost != "" {
		c.BoostPresent = true
		c.BoostEnabled = boost == "1"
	}
	c.PstateMode = r.str(cpuBase + "amd_pstate/status")
	return c
}

// parseCPUInfo takes the first processor block's identity fields.
func parseCPUInfo(text string, c *CPU) {
	for _, line := range strings.Split(text, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch key {
		case "model name":
			if c.ModelName == "" {
				c.ModelName = val
			}
		case "vendor_id":
			if c.Vendor == "" {
				c.Vendor = val
			}
		case "cpu family":
			if c.Family == 0 {
				c.Family, _ = strconv.Atoi(val)
			}
		case "model":
			if c.Model == 0 {
				c.Model, _ = strconv.Atoi(val)
			}
		}
	}
}

// cpuIndex parses "cpu12" into 12; "cpufreq" and "cpuidle" are rejected.
func cpuIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "cpu")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// OnlineCount is the number of cpuN directories.
func (c CPU) OnlineCount() int { return len(c.Cores) }

// IsAMD reports an AMD processor.
func (c CPU) IsAMD() bool { return c.Vendor == "AuthenticAMD" }

// IsAMDPstate reports the amd-pstate family of scaling drivers.
func (c CPU) IsAMDPstate() bool { return strings.HasPrefix(c.ScalingDriver, "amd-pstate") }

// EPPPath is the per-core energy_performance_preference file.
func EPPPath(core int) string {
	return "/" + cpuBase + "cpu" + strconv.Itoa(core) + "/cpufreq/energy_performance_preference"
}
