package hardware

import "strings"

const (
	aspmPolicyPath = "/sys/module/pcie_aspm/parameters/policy"
	pciDevicesBase = "sys/bus/pci/devices/"
	usbDevicesBase = "sys/bus/usb/devices/"
)

// PCI holds the ASPM policy and every PCI function in bus-address order.
type PCI struct {
	ASPMPolicy  string      `json:"aspm_policy,omitempty"`
	ASPMChoices []string    `json:"aspm_choices,omitempty"`
	Devices     []PCIDevice `json:"devices"`
}

// PCIDevice is one function under /sys/bus/pci/devices.
type PCIDevice struct {
	Address        string `json:"address"`
	Class          string `json:"class"`
	Vendor         string `json:"vendor"`
	Device         string `json:"device"`
	Driver         string `json:"driver,omitempty"`
	RuntimeControl string `json:"runtime_control,omitempty"`
	RuntimeStatus  string `json:"runtime_status,omitempty"`
}

// USBDevice is a device node (not an interface) under /sys/bus/usb/devices.
type USBDevice struct {
	Name         string `json:"name"`
	Control      string `json:"control,omitempty"`
	Product      string `json:"product,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
}

// ASPMPath is the global ASPM policy file.
func ASPMPath() string { return aspmPolicyPath }

// RuntimePMPath is the runtime PM control file of a PCI function.
func RuntimePMPath(addr string) string { return "/" + pciDevicesBase + addr + "/power/control" }

// USBControlPath is the autosuspend control file of a USB device.
func USBControlPath(name string) string { return "/" + usbDevicesBase + name + "/power/control" }

func detectPCI(r *reader) PCI {
	var p PCI
	p.ASPMPolicy, p.ASPMChoices = ParseBracketed(r.str(aspmPolicyPath[1:]))

	for _, addr := range r.list(pciDevicesBase) {
		base := pciDevicesBase + addr + "/"
		p.Devices = append(p.Devices, PCIDevice{
			Address:        addr,
			Class:          r.str(base + "class"),
			Vendor:         r.str(base + "vendor"),
			Device:         r.str(base + "device"),
			Driver:         r.link(base + "driver"),
			RuntimeControl: r.str(base + "power/control"),
			RuntimeStatus:  r.str(base + "power/runtime_status"),
		})
	}
	return p
}

func detectUSB(r *reader) []USBDevice {
	var out []USBDevice
	for _, name := range r.list(usbDevicesBase) {
		if strings.Contains(name, ":") {
			continue
		}
		base := usbDevicesBase + name + "/"
		out = append(out, USBDevice{
			Name:         name,
			Control:      r.str(base + "power/control"),
			Product:      r.str(base + "product"),
			Manufacturer: r.str(base + "manufacturer"),
			VendorID:     r.str(base + "idVendor"),
			ProductID:    r.str(base + "idProduct"),
		})
	}
	return out
}

// IsInput reports devices whose autosuspend would lag keystrokes or pointer
// input, judged by product strings.
func (u USBDevice) IsInput() bool {
	p := strings.ToLower(u.Product + " " + u.Manufacturer)
	for _, kw := range []string{"keyboard", "mouse", "trackpad", "touchpad", "receiver", "hid", "input", "expansion"} {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}
