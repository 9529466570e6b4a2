// Package testutil builds synthetic /sys, /proc and /boot trees for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates rel under root with content, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

// Mkdir creates rel under root.
func Mkdir(t testing.TB, root, rel string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
		t.Fatalf("creating %s: %v", rel, err)
	}
}

// Symlink creates link (relative to root) pointing at target. An absolute
// target is resolved inside root; a relative one is used verbatim.
func Symlink(t testing.TB, root, target, link string) {
	t.Helper()
	if filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	path := filepath.Join(root, link)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", link, err)
	}
	if err := os.Symlink(target, path); err != nil {
		t.Fatalf("symlinking %s -> %s: %v", link, target, err)
	}
}

// ReadFile returns the content of rel under root.
func ReadFile(t testing.TB, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

// WakeupTable is the /proc/acpi/wakeup content of the Framework16 fixture.
const WakeupTable = `Device	S-state	  Status   Sysfs node
GPP6	  S4	*disabled  pci:0000:00:02.2
XHC0	  S4	*enabled   pci:0000:c1:00.3
XHC1	  S4	*enabled   pci:0000:c1:00.4
XHC2	  S4	*disabled  pci:0000:c3:00.3
NHI0	  S4	*enabled   pci:0000:c3:00.5
LID0	  S4	*enabled   platform:PNP0C0D:00
PBTN	  S4	*disabled
`

// Framework16 populates a temp dir with a Framework Laptop 16 (Ryzen 7040)
// in its untuned state and returns the directory.
//
// Notable values: EPP balance_performance on 12 cores, platform profile
// "performance", ASPM "default", two PCI functions with runtime PM "on",
// audio power_save 0, nmi_watchdog 1, dirty_writeback 500, running on battery.
// XHC0 carries the keyboard, XHC1 is enabled with nothing attached, XHC2 is
// disabled with a storage device attached.
func Framework16(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	w := func(rel, content string) { WriteFile(t, dir, rel, content+"\n") }

	w("sys/class/dmi/id/board_vendor", "Framework")
	w("sys/class/dmi/id/board_name", "FRANMZCP09")
	w("sys/class/dmi/id/product_name", "Laptop 16 (AMD Ryzen 7040 Series)")
	w("sys/class/dmi/id/product_family", "16in Laptop")
	w("sys/class/dmi/id/bios_version", "03.03")

	w("proc/cpuinfo", "processor\t: 0\nvendor_id\t: AuthenticAMD\ncpu family\t: 25\nmodel\t\t: 116\nmodel name\t: AMD Ryzen 7 7840HS w/ Radeon 780M Graphics\n\nprocessor\t: 1\nvendor_id\t: AuthenticAMD\ncpu family\t: 25\nmodel\t\t: 116")
	w("proc/cmdline", "BOOT_IMAGE=/vmlinuz-6.8 root=UUID=abc rw quiet")
	w("proc/acpi/wakeup", WakeupTable)
	w("proc/sys/kernel/nmi_watchdog", "1")
	w("proc/sys/vm/dirty_writeback_centisecs", "500")

	for i := 0; i < 12; i++ {
		base := fmt.Sprintf("sys/devices/system/cpu/cpu%d/cpufreq/", i)
		w(base+"scaling_driver", "amd-pstate-epp")
		w(base+"scaling_governor", "powersave")
		w(base+"energy_performance_preference", "balance_performance")
		w(base+"energy_performance_available_preferences", "default performance balance_performance balance_power power")
	}
	Mkdir(t, dir, "sys/devices/system/cpu/cpuidle")
	w("sys/devices/system/cpu/cpufreq/boost", "1")
	w("sys/devices/system/cpu/amd_pstate/status", "active")

	w("sys/firmware/acpi/platform_profile", "performance")
	w("sys/firmware/acpi/platform_profile_choices", "low-power balanced performance")
	w("sys/power/state", "freeze mem disk")
	w("sys/power/mem_sleep", "[s2idle]")
	w("sys/module/pcie_aspm/parameters/policy", "[default] performance powersave powersupersave")

	pci := func(addr, class, vendor, device, control, driver string) {
		base := "sys/bus/pci/devices/" + addr + "/"
		w(base+"class", class)
		w(base+"vendor", vendor)
		w(base+"device", device)
		w(base+"power/control", control)
		w(base+"power/runtime_status", map[string]string{"on": "active", "auto": "suspended"}[control])
		if driver != "" {
			Mkdir(t, dir, "sys/bus/pci/drivers/"+driver)
			Symlink(t, dir, "../../../../bus/pci/drivers/"+driver, base+"driver")
		}
	}
	pci("0000:00:00.0", "0x060000", "0x1022", "0x14e8", "on", "")
	pci("0000:c1:00.0", "0x030000", "0x1002", "0x15bf", "auto", "amdgpu")
	pci("0000:c1:00.3", "0x0c0330", "0x1022", "0x15b9", "auto", "xhci_hcd")
	pci("0000:c1:00.4", "0x0c0330", "0x1022", "0x15ba", "on", "xhci_hcd")

	w("sys/class/drm/card1/device/vendor", "0x1002")
	w("sys/class/drm/card1/device/power_dpm_force_performance_level", "auto")
	Mkdir(t, dir, "sys/bus/pci/drivers/amdgpu")
	Symlink(t, dir, "../../../../bus/pci/drivers/amdgpu", "sys/class/drm/card1/device/driver")
	w("sys/class/drm/card1-eDP-1/status", "connected")
	w("sys/module/amdgpu/parameters/abmlevel", "-1")

	bat := "sys/class/power_supply/BAT1/"
	w(bat+"type", "Battery")
	w(bat+"present", "1")
	w(bat+"status", "Discharging")
	w(bat+"capacity", "80")
	w(bat+"energy_now", "68000000")
	w(bat+"energy_full", "80000000")
	w(bat+"energy_full_design", "85000000")
	w(bat+"power_now", "9500000")
	w(bat+"voltage_now", "16800000")
	w(bat+"cycle_count", "42")
	w("sys/class/power_supply/ACAD/type", "Mains")
	w("sys/class/power_supply/ACAD/online", "0")

	// USB topology: usb1 on XHC0 (c1:00.3) with the keyboard, usb3 on XHC1
	// (c1:00.4) empty, usb5 on XHC2 (c3:00.3) with a storage stick.
	usbRoot := func(bus, pciAddr string) {
		devPath := "sys/devices/pci0000:00/" + pciAddr + "/usb" + bus
		Mkdir(t, dir, devPath)
		Symlink(t, dir, "/"+devPath, "sys/bus/usb/devices/usb"+bus)
		w("sys/bus/usb/devices/usb"+bus+"/power/control", "auto")
		w("sys/bus/usb/devices/usb"+bus+"/product", "xHCI Host Controller")
	}
	usbDev := func(name, bus, pciAddr, product, control string) {
		devPath := "sys/devices/pci0000:00/" + pciAddr + "/usb" + bus + "/" + name
		w(devPath+"/product", product)
		w(devPath+"/power/control", control)
		Symlink(t, dir, "/"+devPath, "sys/bus/usb/devices/"+name)
	}
	usbRoot("1", "0000:c1:00.3")
	usbRoot("3", "0000:c1:00.4")
	usbRoot("5", "0000:c3:00.3")
	usbDev("1-1", "1", "0000:c1:00.3", "Laptop 16 Keyboard Module - ANSI", "on")
	usbDev("1-1:1.0", "1", "0000:c1:00.3", "", "")
	usbDev("5-1", "5", "0000:c3:00.3", "USB Storage", "on")

	Mkdir(t, dir, "sys/class/net/wlp1s0/wireless")
	Mkdir(t, dir, "sys/bus/pci/drivers/mt7921e")
	Symlink(t, dir, "../../../../bus/pci/drivers/mt7921e", "sys/class/net/wlp1s0/device/driver")
	Mkdir(t, dir, "sys/class/net/lo")

	w("sys/module/snd_hda_intel/parameters/power_save", "0")
	w("sys/module/snd_hda_intel/parameters/power_save_controller", "N")

	w("sys/class/backlight/amdgpu_bl1/brightness", "200")
	w("sys/class/backlight/amdgpu_bl1/max_brightness", "255")

	return dir
}

// SystemdBoot adds a loader entry with the given options line content.
func SystemdBoot(t testing.TB, root, name, content string) string {
	t.Helper()
	rel := "boot/loader/entries/" + name
	WriteFile(t, root, rel, content)
	return filepath.Join(root, rel)
}
