// Package wakeup lists and toggles ACPI wake sources. USB host controllers
// are cross-referenced against the USB device tree so that a controller
// with something plugged in keeps (or regains) its ability to wake the
// machine, while an empty one is silenced.
package wakeup

import (
	"fmt"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
)

// DefaultPath is the ACPI wakeup table relative to the root.
const DefaultPath = "/proc/acpi/wakeup"

// InternalController wakes on the built-in keyboard and touchpad and is
// never disabled automatically.
const InternalController = "XHC0"

const usbDevices = "sys/bus/usb/devices"

// Controller is a USB host controller wake source with its topology.
type Controller struct {
	Name       string   `json:"name"`
	PCIAddress string   `json:"pci_address,omitempty"`
	Enabled    bool     `json:"enabled"`
	HasDevices bool     `json:"has_devices"`
	Devices    []string `json:"devices,omitempty"`
}

// Action is a scan decision for one controller.
type Action struct {
	Device string `json:"device"`
	Enable bool   `json:"enable"`
	Reason string `json:"reason"`
}

// Manager reads and flips entries of the wakeup table under Root.
type Manager struct {
	Root sysfs.Root
	Path string
}

// New returns a Manager on the standard table.
func New(root sysfs.Root) *Manager {
	return &Manager{Root: root, Path: DefaultPath}
}

// Sources parses the wakeup table.
func (m *Manager) Sources() ([]hardware.WakeupSource, error) {
	text, err := m.Root.Read(m.Path)
	if err != nil {
		return nil, err
	}
	return hardware.ParseWakeup(text), nil
}

// Controllers returns every XHC* source with its attached devices.
func (m *Manager) Controllers() ([]Controller, error) {
	sources, err := m.Sources()
	if err != nil {
		return nil, err
	}
	var out []Controller
	for _, s := range sources {
		if !s.IsUSBController() {
			continue
		}
		c := Controller{Name: s.Device, Enabled: s.Enabled}
		if addr, ok := s.PCIAddress(); ok {
			c.PCIAddress = addr
			c.Devices = m.Attached(addr)
			c.HasDevices = len(c.Devices) > 0
		}
		out = append(out, c)
	}
	return out, nil
}

// HasDevices reports whether any USB device hangs off the controller at
// the given PCI address.
func (m *Manager) HasDevices(pciAddr string) bool {
	return len(m.Attached(pciAddr)) > 0
}

// Attached describes the USB devices behind the root hubs whose canonical
// sysfs path contains pciAddr. Interface nodes ("1-1:1.0") are skipped.
func (m *Manager) Attached(pciAddr string) []string {
	if pciAddr == "" {
		return nil
	}
	names, err := m.Root.ListDir(usbDevices)
	if err != nil {
		return nil
	}
	var out []string
	for _, hub := range names {
		bus, ok := strings.CutPrefix(hub, "usb")
		if !ok {
			continue
		}
		canon, err := m.Root.Canonicalize(usbDevices + "/" + hub)
		if err != nil || !strings.Contains(canon, pciAddr) {
			continue
		}
		for _, dev := range names {
			if strings.HasPrefix(dev, bus+"-") && !strings.Contains(dev, ":") {
				out = append(out, m.describe(dev))
			}
		}
	}
	return out
}

func (m *Manager) describe(dev string) string {
	base := usbDevices + "/" + dev + "/"
	mfg, _, _ := m.Root.ReadOptional(base + "manufacturer")
	prod, _, _ := m.Root.ReadOptional(base + "product")
	switch {
	case mfg != "" && prod != "":
		return mfg + " " + prod
	case prod != "":
		return prod
	case mfg != "":
		return mfg
	default:
		return dev
	}
}

// IsEnabled reports whether the table line for device is marked *enabled.
func (m *Manager) IsEnabled(device string) (bool, error) {
	text, err := m.Root.Read(m.Path)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(text, "\n") {
		f := strings.Fields(line)
		if len(f) > 0 && f[0] == device {
			return strings.Contains(line, "*enabled"), nil
		}
	}
	return false, nil
}

// Toggle flips device's wake state. The kernel interface is edge-triggered:
// writing the name inverts whatever the current state is.
func (m *Manager) Toggle(device string) error {
	return m.Root.Write(m.Path, device)
}

// Enable turns wake on for name, failing if it is unknown or already on.
func (m *Manager) Enable(name string) error { return m.set(name, true) }

// Disable turns wake off for name, failing if it is unknown or already off.
func (m *Manager) Disable(name string) error { return m.set(name, false) }

func (m *Manager) set(name string, enable bool) error {
	sources, err := m.Sources()
	if err != nil {
		return err
	}
	for _, s := range sources {
		if s.Device != name {
			continue
		}
		if s.Enabled == enable {
			state := "disabled"
			if enable {
				state = "enabled"
			}
			return fmt.Errorf("%s is already %s", name, state)
		}
		return m.Toggle(name)
	}
	return fmt.Errorf("controller %q not found in %s", name, m.Path)
}

// Scan decides which USB controllers should change state: enable disabled
// controllers that have devices attached, disable enabled controllers that
// have none, except the internal one. Non-USB sources are left alone.
func (m *Manager) Scan() ([]Action, error) {
	ctrls, err := m.Controllers()
	if err != nil {
		return nil, err
	}
	var out []Action
	for _, c := range ctrls {
		switch {
		case !c.Enabled && c.HasDevices:
			out = append(out, Action{Device: c.Name, Enable: true, Reason: "devices attached: " + strings.Join(c.Devices, ", ")})
		case c.Enabled && !c.HasDevices && c.Name != InternalController:
			out = append(out, Action{Device: c.Name, Enable: false, Reason: "no devices attached"})
		}
	}
	return out, nil
}

// Apply performs the toggles in actions, stopping at the first failure.
func (m *Manager) Apply(actions []Action) error {
	for _, a := range actions {
		if err := m.Toggle(a.Device); err != nil {
			return fmt.Errorf("toggling %s: %w", a.Device, err)
		}
	}
	return nil
}
