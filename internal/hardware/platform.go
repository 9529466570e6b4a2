package hardware

import "strings"

const (
	platformProfilePath = "/sys/firmware/acpi/platform_profile"
	acpiWakeupPath      = "proc/acpi/wakeup"
)

// Platform holds firmware power profile and sleep configuration.
type Platform struct {
	Profile         string         `json:"profile,omitempty"`
	ProfileChoices  []string       `json:"profile_choices,omitempty"`
	SleepStates     []string       `json:"sleep_states,omitempty"`
	MemSleep        string         `json:"mem_sleep,omitempty"`
	MemSleepChoices []string       `json:"mem_sleep_choices,omitempty"`
	Wakeup          []WakeupSource `json:"wakeup,omitempty"`
}

// WakeupSource is one line of /proc/acpi/wakeup.
type WakeupSource struct {
	Device    string `json:"device"`
	SState    string `json:"s_state"`
	Enabled   bool   `json:"enabled"`
	SysfsNode string `json:"sysfs_node,omitempty"`
}

// Network is the first wireless interface.
type Network struct {
	WifiInterface string `json:"wifi_interface,omitempty"`
	WifiDriver    string `json:"wifi_driver,omitempty"`
}

// PlatformProfilePath is the absolute platform_profile file.
func PlatformProfilePath() string { return platformProfilePath }

func detectPlatform(r *reader) Platform {
	var p Platform
	p.Profile = r.str(platformProfilePath[1:])
	// Some firmware brackets the active profile here too.
	_, p.ProfileChoices = ParseBracketed(r.str("sys/firmware/acpi/platform_profile_choices"))
	p.SleepStates = strings.Fields(r.str("sys/power/state"))

	active, choices := ParseBracketed(r.str("sys/power/mem_sleep"))
	if active == "" && len(choices) > 0 {
		active = choices[0]
	}
	p.MemSleep, p.MemSleepChoices = active, choices
	p.Wakeup = ParseWakeup(r.str(acpiWakeupPath))
	return p
}

// ParseWakeup parses /proc/acpi/wakeup. Lines with fewer than three fields
// and the header are skipped.
func ParseWakeup(text string) []WakeupSource {
	var out []WakeupSource
	for _, line := range strings.Split(text, "\n") {
		f := strings.Fields(line)
		if len(f) < 3 || f[0] == "Device" {
			continue
		}
		src := WakeupSource{Device: f[0], SState: f[1], Enabled: f[2] == "*enabled"}
		if last := f[len(f)-1]; strings.HasPrefix(last, "pci:") || strings.HasPrefix(last, "platform:") {
			src.SysfsNode = last
		}
		out = append(out, src)
	}
	return out
}

// PCIAddress returns the PCI address of a pci: sysfs node.
func (w WakeupSource) PCIAddress() (string, bool) {
	return strings.CutPrefix(w.SysfsNode, "pci:")
}

// IsUSBController reports an xHCI host controller.
func (w WakeupSource) IsUSBController() bool { return strings.HasPrefix(w.Device, "XHC") }

func detectNetwork(r *reader) Network {
	var n Network
	for _, iface := range r.list("sys/class/net") {
		if !r.root.IsDir("sys/class/net/" + iface + "/wireless") {
			continue
		}
		n.WifiInterface = iface
		n.WifiDriver = r.link("sys/class/net/" + iface + "/device/driver")
		break
	}
	return n
}
