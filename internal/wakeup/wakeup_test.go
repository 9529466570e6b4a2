package wakeup

import (
	"strings"
	"testing"

	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/testutil"
)

func TestScanEnablesAndDisablesByTopology(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "proc/acpi/wakeup", `Device	S-state	  Status   Sysfs node
XHC0	  S4	*enabled   pci:0000:c1:00.3
XHC1	  S4	*enabled   pci:0000:c1:00.4
XHC2	  S4	*disabled  pci:0000:c3:00.3
GPP6	  S4	*disabled  pci:0000:00:02.2
PBTN	  S4	*disabled
`)
	// X = c1:00.4 has a root hub but nothing attached; Y = c3:00.3 has a device.
	testutil.Mkdir(t, dir, "sys/devices/pci0000:00/0000:c1:00.4/usb3")
	testutil.Symlink(t, dir, "/sys/devices/pci0000:00/0000:c1:00.4/usb3", "sys/bus/usb/devices/usb3")
	testutil.WriteFile(t, dir, "sys/devices/pci0000:00/0000:c3:00.3/usb5/5-1/product", "Flash Drive\n")
	testutil.WriteFile(t, dir, "sys/devices/pci0000:00/0000:c3:00.3/usb5/5-1/manufacturer", "SanDisk\n")
	testutil.Symlink(t, dir, "/sys/devices/pci0000:00/0000:c3:00.3/usb5", "sys/bus/usb/devices/usb5")
	testutil.Symlink(t, dir, "/sys/devices/pci0000:00/0000:c3:00.3/usb5/5-1", "sys/bus/usb/devices/5-1")
	testutil.Mkdir(t, dir, "sys/devices/pci0000:00/0000:c3:00.3/usb5/5-1:1.0")
	testutil.Symlink(t, dir, "/sys/devices/pci0000:00/0000:c3:00.3/usb5/5-1:1.0", "sys/bus/usb/devices/5-1:1.0")

	m := New(sysfs.New(dir))
	actions, err := m.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %+v", actions)
	}
	if actions[0].Device != "XHC1" || actions[0].Enable {
		t.Errorf("first action = %+v, want disable XHC1", actions[0])
	}
	if actions[1].Device != "XHC2" || !actions[1].Enable {
		t.Errorf("second action = %+v, want enable XHC2", actions[1])
	}
	for _, a := range actions {
		if a.Device == "XHC0" || a.Device == "GPP6" || a.Device == "PBTN" {
			t.Errorf("unexpected action on %s", a.Device)
		}
	}
	if !strings.Contains(actions[1].Reason, "SanDisk Flash Drive") {
		t.Errorf("reason = %q", actions[1].Reason)
	}
}

func TestControllersFromFixture(t *testing.T) {
	m := New(sysfs.New(testutil.Framework16(t)))
	ctrls, err := m.Controllers()
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]Controller{}
	for _, c := range ctrls {
		byName[c.Name] = c
	}
	if len(byName) != 3 {
		t.Fatalf("controllers = %+v", ctrls)
	}
	if !byName["XHC0"].HasDevices || byName["XHC0"].Devices[0] != "Laptop 16 Keyboard Module - ANSI" {
		t.Errorf("XHC0 = %+v", byName["XHC0"])
	}
	if byName["XHC1"].HasDevices {
		t.Errorf("XHC1 = %+v", byName["XHC1"])
	}
	if !byName["XHC2"].HasDevices {
		t.Errorf("XHC2 = %+v", byName["XHC2"])
	}
}

func TestEnableDisableErrors(t *testing.T) {
	dir := testutil.Framework16(t)
	m := New(sysfs.New(dir))

	if err := m.Enable("XHC0"); err == nil || !strings.Contains(err.Error(), "already enabled") {
		t.Errorf("Enable(XHC0) = %v", err)
	}
	if err := m.Disable("PBTN"); err == nil || !strings.Contains(err.Error(), "already disabled") {
		t.Errorf("Disable(PBTN) = %v", err)
	}
	if err := m.Disable("XHC9"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Disable(XHC9) = %v", err)
	}

	if err := m.Disable("XHC1"); err != nil {
		t.Fatalf("Disable(XHC1): %v", err)
	}
	if got := testutil.ReadFile(t, dir, "proc/acpi/wakeup"); got != "XHC1" {
		t.Errorf("toggle wrote %q", got)
	}
}

func TestIsEnabled(t *testing.T) {
	m := New(sysfs.New(testutil.Framework16(t)))
	for dev, want := range map[string]bool{"XHC0": true, "XHC2": false, "LID0": true, "MISSING": false} {
		got, err := m.IsEnabled(dev)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("IsEnabled(%s) = %v", dev, got)
		}
	}
}
