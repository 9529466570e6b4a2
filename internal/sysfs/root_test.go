package sysfs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vesaa/bop/internal/errs"
)

func writeSyntheticFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func TestReadValueSelectsBracketed(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticFile(t, dir, "sys/module/pcie_aspm/parameters/policy", "default performance [powersave] powersupersave\n")
	writeSyntheticFile(t, dir, "proc/sys/kernel/nmi_watchdog", "1\n")
	root := New(dir)

	if got, err := root.ReadValue("/sys/module/pcie_aspm/parameters/policy"); err != nil || got != "powersave" {
		t.Errorf("ReadValue(policy) = %q, %v", got, err)
	}
	if got, err := root.ReadValue("/proc/sys/kernel/nmi_watchdog"); err != nil || got != "1" {
		t.Errorf("ReadValue(nmi_watchdog) = %q, %v", got, err)
	}
	if _, err := root.ReadValue("/sys/missing"); err == nil {
		t.Error("ReadValue(missing) succeeded")
	}
	if got := Selected("[]"); got != "[]" {
		t.Errorf("Selected([]) = %q", got)
	}
}

func TestReadTrims(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticFile(t, dir, "sys/power/mem_sleep", "  s2idle [deep]\n")
	root := New(dir)

	got, err := root.Read("/sys/power/mem_sleep")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "s2idle [deep]" {
		t.Errorf("Read = %q", got)
	}

	raw, err := root.ReadRaw("sys/power/mem_sleep")
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if raw != "  s2idle [deep]\n" {
		t.Errorf("ReadRaw = %q", raw)
	}
}

func TestReadOptionalMissing(t *testing.T) {
	root := New(t.TempDir())
	v, ok, err := root.ReadOptional("sys/firmware/acpi/platform_profile")
	if err != nil || ok || v != "" {
		t.Errorf("ReadOptional = (%q, %v, %v), want absent", v, ok, err)
	}
}

func TestReadOptionalPropagatesOtherErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sys/power/state"), 0o755); err != nil {
		t.Fatal(err)
	}
	root := New(dir)
	if _, _, err := root.ReadOptional("sys/power/state"); err == nil {
		t.Fatal("reading a directory should fail")
	} else if !errs.Is(err, errs.SysfsRead) {
		t.Errorf("error kind = %v, want SysfsRead", errs.KindOf(err))
	}
}

func TestWriteRequiresParent(t *testing.T) {
	dir := t.TempDir()
	root := New(dir)
	if err := root.Write("sys/missing/control", "auto"); !errs.Is(err, errs.SysfsWrite) {
		t.Fatalf("Write into missing dir = %v, want SysfsWrite", err)
	}

	writeSyntheticFile(t, dir, "sys/ok/control", "on\n")
	if err := root.Write("sys/ok/control", "auto"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, _ := root.Read("sys/ok/control"); got != "auto" {
		t.Errorf("after write = %q", got)
	}
}

func TestListDirSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"cpu2", "cpu10", "cpu0", "cpufreq"} {
		writeSyntheticFile(t, dir, filepath.Join("sys/devices/system/cpu", n, "x"), "")
	}
	root := New(dir)
	got, err := root.ListDir("sys/devices/system/cpu")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"cpu0", "cpu10", "cpu2", "cpufreq"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListDir = %v, want %v", got, want)
	}
}

func TestCanonicalizeAndLinkBase(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticFile(t, dir, "sys/devices/pci0000:00/0000:c1:00.3/usb1/x", "")
	writeSyntheticFile(t, dir, "sys/bus/pci/drivers/xhci_hcd/x", "")
	if err := os.MkdirAll(filepath.Join(dir, "sys/bus/usb/devices"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "sys/devices/pci0000:00/0000:c1:00.3/usb1"),
		filepath.Join(dir, "sys/bus/usb/devices/usb1")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../../bus/pci/drivers/xhci_hcd",
		filepath.Join(dir, "sys/devices/pci0000:00/0000:c1:00.3/driver")); err != nil {
		t.Fatal(err)
	}

	root := New(dir)
	canon, err := root.Canonicalize("sys/bus/usb/devices/usb1")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(filepath.Dir(canon)) != "0000:c1:00.3" {
		t.Errorf("Canonicalize = %s", canon)
	}
	if name, ok := root.LinkBase("sys/devices/pci0000:00/0000:c1:00.3/driver"); !ok || name != "xhci_hcd" {
		t.Errorf("LinkBase = %q, %v", name, ok)
	}
}

func TestPathAndRel(t *testing.T) {
	root := New("/tmp/fixture")
	if got := root.Path("/sys/power/state"); got != "/tmp/fixture/sys/power/state" {
		t.Errorf("Path = %s", got)
	}
	if got := root.Rel("/tmp/fixture/boot/loader/entries/a.conf"); got != "/boot/loader/entries/a.conf" {
		t.Errorf("Rel = %s", got)
	}
	if !System().IsSystem() || root.IsSystem() {
		t.Error("IsSystem mismatch")
	}
}
