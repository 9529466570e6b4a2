package status

import (
	"testing"
	"time"

	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/testutil"
)

func TestCheckCounts(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sys/firmware/acpi/platform_profile", "low-power\n")
	testutil.WriteFile(t, dir, "sys/module/pcie_aspm/parameters/policy", "default\n")
	testutil.WriteFile(t, dir, "proc/acpi/wakeup", "Device\tS-state\tStatus\tSysfs node\nXHC1\t  S4\t*disabled  pci:0000:c1:00.4\n")
	testutil.WriteFile(t, dir, "proc/cmdline", "root=UUID=abc quiet acpi.ec_no_wakeup=1\n")
	testutil.WriteFile(t, dir, "etc/systemd/system/bop-powersave.service", "[Unit]\n")

	j := journal.New(time.Now())
	j.RecordSysfs("/sys/firmware/acpi/platform_profile", "performance", "low-power")
	j.RecordSysfs("/sys/module/pcie_aspm/parameters/policy", "default", "powersave")
	j.RecordWakeup("XHC1")
	j.RecordKernelParams([]string{"acpi.ec_no_wakeup=1", "rtc_cmos.use_acpi_alarm=1"})
	j.RecordUnit("/etc/systemd/system/bop-powersave.service")

	r := Checker{Root: sysfs.New(dir)}.Check(j)
	if r.Total() != 6 || r.Active() != 4 || r.Drifted() != 2 {
		t.Fatalf("total/active/drifted = %d/%d/%d, want 6/4/2", r.Total(), r.Active(), r.Drifted())
	}
	if a := r.Sysfs[1].Actual; a == nil || *a != "default" || r.Sysfs[1].Active {
		t.Errorf("drifted sysfs = %+v", r.Sysfs[1])
	}
	if r.KernelParams[1].InCmdline {
		t.Error("rtc_cmos param should be pending reboot")
	}
}

func TestCheckChoiceListActive(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sys/module/pcie_aspm/parameters/policy", "default performance [powersave] powersupersave\n")
	j := journal.New(time.Now())
	j.RecordSysfs("/sys/module/pcie_aspm/parameters/policy", "default", "powersave")

	r := Checker{Root: sysfs.New(dir)}.Check(j)
	if a := r.Sysfs[0].Actual; a == nil || *a != "powersave" || !r.Sysfs[0].Active {
		t.Errorf("ASPM status = %+v", r.Sysfs[0])
	}
	if r.Drifted() != 0 {
		t.Errorf("drifted = %d", r.Drifted())
	}
}

func TestCheckMissingAndServices(t *testing.T) {
	j := journal.New(time.Now())
	j.RecordSysfs("/sys/gone", "1", "0")
	j.RecordService("tlp")
	j.RecordService("power-profiles-daemon")
	j.RecordModprobe("/etc/modprobe.d/bop-audio.conf")

	svc := system.Systemctl{R: (&system.Fake{}).
		On("systemctl is-active --quiet", system.Fail()).
		On("systemctl is-enabled --quiet", system.Fail()).
		On("systemctl is-enabled --quiet tlp", system.FakeResult{})}
	r := Checker{Root: sysfs.New(t.TempDir()), Services: svc}.Check(j)

	if r.Sysfs[0].Actual != nil || r.Sysfs[0].Active {
		t.Errorf("missing file = %+v", r.Sysfs[0])
	}
	if r.Services[0].StillStopped || !r.Services[1].StillStopped {
		t.Errorf("services = %+v", r.Services)
	}
	if r.ModprobeFiles[0].Exists {
		t.Error("modprobe file reported present")
	}
	if r.Active() != 1 || r.Drifted() != 3 {
		t.Errorf("active/drifted = %d/%d", r.Active(), r.Drifted())
	}
}
