package apply

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/testutil"
	"github.com/vesaa/bop/internal/wakeup"
)

var errInjected = errors.New("injected failure")

// fakeOps writes sysfs values under root and records everything else.
type fakeOps struct {
	root    sysfs.Root
	fail    map[string]bool
	wake    map[string]bool
	backups []journal.Backup
	calls   []string
	saved   []*journal.Journal
}

func (f *fakeOps) err(op string) error {
	f.calls = append(f.calls, op)
	if f.fail[op] {
		return errInjected
	}
	return nil
}

func (f *fakeOps) WriteSysfs(path, value string) error {
	if err := f.err("write_sysfs " + path); err != nil {
		return err
	}
	return f.root.Write(path, value)
}

func (f *fakeOps) WakeupEnabled(device string) (bool, error) { return f.wake[device], nil }

func (f *fakeOps) ToggleWakeup(device string) error {
	if err := f.err("toggle " + device); err != nil {
		return err
	}
	f.wake[device] = !f.wake[device]
	return nil
}

func (f *fakeOps) AddKernelParams(params []string) ([]journal.Backup, error) {
	if err := f.err("add_kernel_params"); err != nil {
		return nil, err
	}
	return f.backups, nil
}

func (f *fakeOps) DisableService(name string) error { return f.err("disable " + name) }

func (f *fakeOps) WriteModprobe(cfg plan.ModprobeConfig) (string, error) {
	return "/etc/modprobe.d/" + cfg.Filename, f.err("write_modprobe")
}

func (f *fakeOps) GenerateUnit(*hardware.View, *plan.Plan) (string, error) {
	return "/etc/systemd/system/" + UnitName, f.err("generate_unit")
}

func (f *fakeOps) EnableUnit() error { return f.err("enable_unit") }

func (f *fakeOps) SaveState(j *journal.Journal) error {
	f.saved = append(f.saved, j.Clone())
	return nil
}

func (f *fakeOps) last(t *testing.T) *journal.Journal {
	t.Helper()
	if len(f.saved) == 0 {
		t.Fatal("journal never saved")
	}
	return f.saved[len(f.saved)-1]
}

func newEngine(dir string, ops Ops) *Engine {
	return &Engine{
		Root:    sysfs.New(dir),
		Ops:     ops,
		Out:     &bytes.Buffer{},
		Now:     func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) },
		Geteuid: func() int { return 0 },
	}
}

func TestUnitEnableFailureKeepsFourFences(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "proc/sys/kernel/nmi_watchdog", "1\n")
	ops := &fakeOps{
		root:    sysfs.New(dir),
		fail:    map[string]bool{"enable_unit": true},
		backups: []journal.Backup{{Path: "/boot/loader/entries/linux.conf", OriginalContent: "options quiet\n"}},
	}
	p := &plan.Plan{
		SysfsWrites:       []plan.PlannedWrite{{Path: "/proc/sys/kernel/nmi_watchdog", Value: "0", Description: "NMI watchdog → off"}},
		KernelParams:      []string{"acpi.ec_no_wakeup=1"},
		ServicesToDisable: []string{"power-profiles-daemon"},
		SystemdService:    true,
	}

	_, err := newEngine(dir, ops).Run(&hardware.View{}, p)
	if !errors.Is(err, errInjected) {
		t.Fatalf("Run err = %v", err)
	}
	if len(ops.saved) != 4 {
		t.Errorf("saves = %d, want 4", len(ops.saved))
	}

	j := ops.last(t)
	want := []journal.SysfsChange{{Path: "/proc/sys/kernel/nmi_watchdog", OriginalValue: "1", NewValue: "0"}}
	if !reflect.DeepEqual(j.SysfsChanges, want) {
		t.Errorf("sysfs_changes = %+v", j.SysfsChanges)
	}
	if !reflect.DeepEqual(j.KernelParamsAdded, p.KernelParams) || len(j.KernelParamBackups) != 1 {
		t.Errorf("kernel params = %v, backups = %+v", j.KernelParamsAdded, j.KernelParamBackups)
	}
	if !reflect.DeepEqual(j.ServicesDisabled, []string{"power-profiles-daemon"}) {
		t.Errorf("services = %v", j.ServicesDisabled)
	}
	if !reflect.DeepEqual(j.SystemdUnitsCreated, []string{"/etc/systemd/system/" + UnitName}) {
		t.Errorf("units = %v", j.SystemdUnitsCreated)
	}
}

func TestSysfsFailurePersistsCompletedWrites(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sys/a", "1\n")
	testutil.WriteFile(t, dir, "sys/b", "1\n")
	ops := &fakeOps{root: sysfs.New(dir), fail: map[string]bool{"write_sysfs /sys/b": true}}
	p := &plan.Plan{
		SysfsWrites: []plan.PlannedWrite{
			{Path: "/sys/a", Value: "0"},
			{Path: "/sys/b", Value: "0"},
		},
		KernelParams: []string{"acpi.ec_no_wakeup=1"},
	}

	j, err := newEngine(dir, ops).Run(&hardware.View{}, p)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ops.saved) != 1 || len(j.SysfsChanges) != 1 || j.SysfsChanges[0].Path != "/sys/a" {
		t.Fatalf("saved %d, journal %+v", len(ops.saved), j)
	}
	for _, c := range ops.calls {
		if c == "add_kernel_params" {
			t.Error("kernel params attempted after abort")
		}
	}
}

func TestWakeupToggledOnlyWhenEnabled(t *testing.T) {
	ops := &fakeOps{wake: map[string]bool{"XHC1": true, "XHC3": false}}
	p := &plan.Plan{ACPIWakeupDisable: []string{"XHC1", "XHC3"}}

	j, err := newEngine(t.TempDir(), ops).Run(&hardware.View{}, p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(j.ACPIWakeupToggled, []string{"XHC1"}) {
		t.Errorf("toggled = %v", j.ACPIWakeupToggled)
	}
	if ops.wake["XHC1"] || len(ops.saved) != 1 {
		t.Errorf("wake = %v, saves = %d", ops.wake, len(ops.saved))
	}
}

func TestReapplyMergesPriorJournal(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sys/x", "balance_power\n")
	prior := journal.New(time.Now())
	prior.RecordSysfs("/sys/x", "performance", "balance_power")
	prior.RecordService("tlp")
	prior.MergeBackups([]journal.Backup{
		{Path: "/boot/loader/entries/a.conf", OriginalContent: "A0"},
		{Path: "/boot/loader/entries/b.conf", OriginalContent: "B0"},
	})

	ops := &fakeOps{
		root:    sysfs.New(dir),
		backups: []journal.Backup{{Path: "/boot/loader/entries/b.conf", OriginalContent: "B1"}},
	}
	e := newEngine(dir, ops)
	e.Prior = prior
	p := &plan.Plan{
		SysfsWrites:       []plan.PlannedWrite{{Path: "/sys/x", Value: "power"}},
		KernelParams:      []string{"amdgpu.abmlevel=3"},
		ServicesToDisable: []string{"tlp"},
	}
	j, err := e.Run(&hardware.View{}, p)
	if err != nil {
		t.Fatal(err)
	}

	if c := j.SysfsChanges; len(c) != 1 || c[0].OriginalValue != "performance" || c[0].NewValue != "power" {
		t.Errorf("sysfs = %+v", c)
	}
	wantBackups := []journal.Backup{
		{Path: "/boot/loader/entries/a.conf", OriginalContent: "A0"},
		{Path: "/boot/loader/entries/b.conf", OriginalContent: "B1"},
	}
	if !reflect.DeepEqual(j.KernelParamBackups, wantBackups) {
		t.Errorf("backups = %+v", j.KernelParamBackups)
	}
	if !reflect.DeepEqual(j.ServicesDisabled, []string{"tlp"}) {
		t.Errorf("services = %v", j.ServicesDisabled)
	}
	if len(prior.SysfsChanges) != 1 || prior.SysfsChanges[0].NewValue != "balance_power" {
		t.Error("prior journal was modified in place")
	}
}

func TestPreflight(t *testing.T) {
	e := newEngine(t.TempDir(), &fakeOps{})
	e.Geteuid = func() int { return 1000 }
	if _, err := e.Run(&hardware.View{}, &plan.Plan{}); !errs.Is(err, errs.NotRoot) {
		t.Errorf("non-root err = %v", err)
	}

	e.Geteuid = func() int { return 0 }
	e.Services = system.Systemctl{R: (&system.Fake{}).On("systemctl is-active --quiet tlp", system.FakeResult{})}
	_, err := e.Run(&hardware.View{}, &plan.Plan{})
	if !errs.Is(err, errs.ConflictingService) {
		t.Fatalf("tlp active err = %v", err)
	}
	if !strings.Contains(err.Error(), "TLP is currently running. Stop it first: sudo systemctl stop tlp && sudo systemctl disable tlp") {
		t.Errorf("message = %q", err)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	ops := &fakeOps{}
	e := newEngine(t.TempDir(), ops)
	e.DryRun = true
	e.Geteuid = func() int { return 1000 }
	p := &plan.Plan{
		SysfsWrites:    []plan.PlannedWrite{{Path: "/sys/x", Value: "1", Description: "X → 1"}},
		KernelParams:   []string{"acpi.ec_no_wakeup=1"},
		SystemdService: true,
	}
	j, err := e.Run(&hardware.View{}, p)
	if err != nil || j != nil {
		t.Fatalf("dry run = %v, %v", j, err)
	}
	if len(ops.calls) != 0 || len(ops.saved) != 0 {
		t.Errorf("dry run performed %v", ops.calls)
	}
	out := e.Out.(*bytes.Buffer).String()
	for _, s := range []string{"X → 1", "acpi.ec_no_wakeup=1", UnitName} {
		if !strings.Contains(out, s) {
			t.Errorf("trace missing %q:\n%s", s, out)
		}
	}
}

func TestSystemOpsEndToEnd(t *testing.T) {
	dir := testutil.Framework16(t)
	testutil.SystemdBoot(t, dir, "linux.conf", "title Linux\noptions root=UUID=abc quiet\n")
	root := sysfs.New(dir)
	runner := (&system.Fake{}).
		On("systemctl is-active --quiet", system.Fail()).
		On("systemctl is-enabled --quiet", system.Fail())

	hw, err := hardware.Detect(root)
	if err != nil {
		t.Fatal(err)
	}
	svc := system.Systemctl{R: runner}
	p := plan.Builder{Root: root, Services: svc, Mode: plan.Normal}.Build(hw)

	ops := &SystemOps{
		Root:        root,
		Runner:      runner,
		Wakeup:      wakeup.New(root),
		Store:       journal.Store{Path: filepath.Join(dir, "var/lib/bop/state.json")},
		UnitDir:     "/etc/systemd/system",
		ModprobeDir: "/etc/modprobe.d",
	}
	e := newEngine(dir, ops)
	e.Services = svc
	j, err := e.Run(hw, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ReadFile(t, dir, "sys/firmware/acpi/platform_profile"); got != "low-power" {
		t.Errorf("platform_profile = %q", got)
	}
	entry := testutil.ReadFile(t, dir, "boot/loader/entries/linux.conf")
	if !strings.Contains(entry, "acpi.ec_no_wakeup=1") || !strings.Contains(entry, "amdgpu.abmlevel=3") {
		t.Errorf("loader entry = %q", entry)
	}
	unit := testutil.ReadFile(t, dir, "etc/systemd/system/"+UnitName)
	if !strings.Contains(unit, "ExecStart=/bin/sh -c 'echo low-power > /sys/firmware/acpi/platform_profile'") {
		t.Errorf("unit missing platform profile line:\n%s", unit)
	}
	if !runner.Called("systemctl enable " + UnitName) {
		t.Errorf("unit not enabled: %v", runner.Calls)
	}
	if !reflect.DeepEqual(j.ACPIWakeupToggled, []string{"XHC1"}) {
		t.Errorf("wakeup = %v", j.ACPIWakeupToggled)
	}
	for _, c := range j.SysfsChanges {
		if c.Path == hardware.ASPMPath() && (c.OriginalValue != "default" || c.NewValue != "powersave") {
			t.Errorf("ASPM change recorded as %+v", c)
		}
	}

	stored, err := ops.Store.Load()
	if err != nil || stored == nil {
		t.Fatalf("stored journal = %v, %v", stored, err)
	}
	if !reflect.DeepEqual(stored, j) {
		t.Errorf("stored journal differs from returned one")
	}
	if _, err := os.Stat(filepath.Join(dir, "etc/modprobe.d")); err == nil {
		t.Error("normal mode wrote a modprobe config")
	}
}
