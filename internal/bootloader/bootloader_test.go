package bootloader

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/testutil"
)

var sleepParams = []string{"acpi.ec_no_wakeup=1", "rtc_cmos.use_acpi_alarm=1"}

func TestSystemdBootAddAndRestore(t *testing.T) {
	dir := t.TempDir()
	original := "title Linux\noptions root=UUID=abc quiet acpi.ec_no_wakeup=0 rtc_cmos.use_acpi_alarm=0\n"
	testutil.SystemdBoot(t, dir, "linux.conf", original)

	ed, err := Detect(sysfs.New(dir), &system.Fake{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ed.Kind != SystemdBoot {
		t.Fatalf("Kind = %v", ed.Kind)
	}
	backups, err := ed.AddParams(sleepParams)
	if err != nil {
		t.Fatalf("AddParams: %v", err)
	}

	want := "title Linux\noptions root=UUID=abc quiet acpi.ec_no_wakeup=1 rtc_cmos.use_acpi_alarm=1\n"
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/linux.conf"); got != want {
		t.Errorf("entry = %q, want %q", got, want)
	}
	if len(backups) != 1 || backups[0].Path != "/boot/loader/entries/linux.conf" || backups[0].OriginalContent != original {
		t.Fatalf("backups = %+v", backups)
	}

	failed, err := ed.RestoreBackups(backups)
	if err != nil || len(failed) != 0 {
		t.Fatalf("RestoreBackups = %v, %v", failed, err)
	}
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/linux.conf"); got != original {
		t.Errorf("restored = %q, want %q", got, original)
	}
}

func TestEditOptionsContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		params  []string
		add     bool
		want    string
	}{
		{
			name:    "replace in place",
			content: "options root=UUID=abc acpi.ec_no_wakeup=0 quiet\n",
			params:  []string{"acpi.ec_no_wakeup=1"},
			add:     true,
			want:    "options root=UUID=abc acpi.ec_no_wakeup=1 quiet\n",
		},
		{
			name:    "append",
			content: "options root=UUID=abc quiet",
			params:  []string{"amdgpu.abmlevel=3"},
			add:     true,
			want:    "options root=UUID=abc quiet amdgpu.abmlevel=3",
		},
		{
			name:    "already present",
			content: "options  root=UUID=abc   amdgpu.abmlevel=3\n",
			params:  []string{"amdgpu.abmlevel=3"},
			add:     true,
			want:    "options  root=UUID=abc   amdgpu.abmlevel=3\n",
		},
		{
			name:    "remove by key",
			content: "linux /vmlinuz\noptions root=UUID=abc acpi.ec_no_wakeup=1 quiet rtc_cmos.use_acpi_alarm=1\n",
			params:  sleepParams,
			want:    "linux /vmlinuz\noptions root=UUID=abc quiet\n",
		},
		{
			name:    "indented options is not the marker",
			content: "  options ignored\noptions quiet\n",
			params:  []string{"a=1"},
			add:     true,
			want:    "  options ignored\noptions quiet a=1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EditOptionsContent(tt.content, tt.params, tt.add)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissingOptionsLine(t *testing.T) {
	dir := t.TempDir()
	testutil.SystemdBoot(t, dir, "a.conf", "options quiet\n")
	testutil.SystemdBoot(t, dir, "b.conf", "title broken\n")
	before := testutil.ReadFile(t, dir, "boot/loader/entries/a.conf")

	ed, err := Detect(sysfs.New(dir), &system.Fake{})
	if err != nil {
		t.Fatal(err)
	}
	backups, err := ed.AddParams([]string{"acpi.ec_no_wakeup=1"})
	if !errs.Is(err, errs.Bootloader) {
		t.Fatalf("err = %v, want Bootloader", err)
	}
	if backups != nil {
		t.Errorf("backups returned for rolled back files: %+v", backups)
	}
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/a.conf"); got != before {
		t.Errorf("a.conf not rolled back: %q", got)
	}
}

func TestUnreadableEntryRollsBack(t *testing.T) {
	dir := t.TempDir()
	testutil.SystemdBoot(t, dir, "a.conf", "options quiet\n")
	// A directory named like an entry cannot be read as a file.
	testutil.Mkdir(t, dir, EntriesDir+"/b.conf")

	ed, err := Detect(sysfs.New(dir), &system.Fake{})
	if err != nil {
		t.Fatal(err)
	}
	backups, err := ed.AddParams([]string{"acpi.ec_no_wakeup=1"})
	if err == nil || backups != nil {
		t.Fatalf("AddParams = %+v, %v", backups, err)
	}
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/a.conf"); got != "options quiet\n" {
		t.Errorf("a.conf = %q, want original", got)
	}
}

func TestWriteFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	testutil.SystemdBoot(t, dir, "a.conf", "options quiet\n")
	testutil.SystemdBoot(t, dir, "b.conf", "options splash\n")

	ed, err := Detect(sysfs.New(dir), &system.Fake{})
	if err != nil {
		t.Fatal(err)
	}
	failing := filepath.Join(dir, EntriesDir, "b.conf")
	ed.write = func(path, content string) error {
		if path == failing && content != "options splash\n" {
			return errors.New("read-only file system")
		}
		return writeDefault(path, content)
	}

	backups, err := ed.AddParams([]string{"acpi.ec_no_wakeup=1"})
	if err == nil || backups != nil {
		t.Fatalf("AddParams = %v, %v", backups, err)
	}
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/a.conf"); got != "options quiet\n" {
		t.Errorf("a.conf = %q, want original", got)
	}
}

func TestNoEntries(t *testing.T) {
	dir := t.TempDir()
	testutil.Mkdir(t, dir, EntriesDir)
	ed, err := Detect(sysfs.New(dir), &system.Fake{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ed.AddParams(sleepParams); !errs.Is(err, errs.Bootloader) {
		t.Errorf("err = %v, want Bootloader", err)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	if _, err := Detect(sysfs.New(dir), nil); !errs.Is(err, errs.Bootloader) {
		t.Errorf("empty root: err = %v", err)
	}

	testutil.WriteFile(t, dir, GrubDefaults, "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n")
	ed, err := Detect(sysfs.New(dir), nil)
	if err != nil || ed.Kind != Grub {
		t.Fatalf("grub only: %v, %v", ed, err)
	}

	testutil.Mkdir(t, dir, EntriesDir)
	ed, err = Detect(sysfs.New(dir), nil)
	if err != nil || ed.Kind != SystemdBoot {
		t.Errorf("both present: %v, %v", ed, err)
	}
}

func TestGrubSingleQuotes(t *testing.T) {
	dir := t.TempDir()
	original := "GRUB_TIMEOUT=5\nGRUB_CMDLINE_LINUX_DEFAULT='quiet'\nGRUB_CMDLINE_LINUX=\"crashkernel=auto\"\n"
	testutil.WriteFile(t, dir, GrubDefaults, original)
	testutil.Mkdir(t, dir, "boot/grub2")

	fake := &system.Fake{}
	ed, err := Detect(sysfs.New(dir), fake)
	if err != nil {
		t.Fatal(err)
	}
	backups, err := ed.AddParams([]string{"acpi.ec_no_wakeup=1"})
	if err != nil {
		t.Fatalf("AddParams: %v", err)
	}

	want := "GRUB_TIMEOUT=5\nGRUB_CMDLINE_LINUX_DEFAULT='quiet acpi.ec_no_wakeup=1'\nGRUB_CMDLINE_LINUX=\"crashkernel=auto\"\n"
	if got := testutil.ReadFile(t, dir, GrubDefaults); got != want {
		t.Errorf("grub = %q, want %q", got, want)
	}
	if len(backups) != 1 || backups[0].OriginalContent != original || !IsGrubConfig(backups[0].Path) {
		t.Errorf("backups = %+v", backups)
	}
	mk := "grub-mkconfig -o " + filepath.Join(dir, "boot/grub2/grub.cfg")
	if !fake.Called(mk) {
		t.Errorf("calls = %v, want %q", fake.Calls, mk)
	}
}

func TestGrubMkconfigFailureKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, GrubDefaults, "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n")
	fake := (&system.Fake{}).On("grub-mkconfig", system.Fail())

	ed, err := Detect(sysfs.New(dir), fake)
	if err != nil {
		t.Fatal(err)
	}
	backups, err := ed.AddParams([]string{"acpi.ec_no_wakeup=1"})
	if !errs.Is(err, errs.Bootloader) {
		t.Fatalf("err = %v, want Bootloader", err)
	}
	if len(backups) != 1 {
		t.Errorf("backup not returned: %+v", backups)
	}
}

func TestEditGrubContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		params  []string
		add     bool
		want    string
	}{
		{
			name:    "unquoted gets double quotes",
			content: "GRUB_CMDLINE_LINUX_DEFAULT=quiet\n",
			params:  []string{"a=1"},
			add:     true,
			want:    "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet a=1\"\n",
		},
		{
			name:    "leading whitespace and trailing comment",
			content: "  GRUB_CMDLINE_LINUX_DEFAULT=\"quiet a=0\" # tuned\n",
			params:  []string{"a=1"},
			add:     true,
			want:    "  GRUB_CMDLINE_LINUX_DEFAULT=\"quiet a=1\" # tuned\n",
		},
		{
			name:    "remove keeps quotes",
			content: "GRUB_CMDLINE_LINUX=\"a=9\"\nGRUB_CMDLINE_LINUX_DEFAULT='quiet a=1'",
			params:  []string{"a=1"},
			want:    "GRUB_CMDLINE_LINUX=\"a=9\"\nGRUB_CMDLINE_LINUX_DEFAULT='quiet'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EditGrubContent(tt.content, tt.params, tt.add)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := EditGrubContent("GRUB_CMDLINE_LINUX=\"quiet\"\n", []string{"a=1"}, true); !errs.Is(err, errs.Bootloader) {
		t.Errorf("missing line: err = %v", err)
	}
}

func TestRestoreBackupsCollectsAll(t *testing.T) {
	dir := t.TempDir()
	testutil.SystemdBoot(t, dir, "a.conf", "options changed\n")
	ed := &Editor{Root: sysfs.New(dir), Runner: &system.Fake{}}

	backups := []journal.Backup{
		{Path: "/missing/dir/x.conf", OriginalContent: "x"},
		{Path: "/" + EntriesDir + "/a.conf", OriginalContent: "options quiet\n"},
	}
	failed, err := ed.RestoreBackups(backups)
	if err == nil || len(failed) != 1 || failed[0].Path != backups[0].Path {
		t.Fatalf("RestoreBackups = %+v, %v", failed, err)
	}
	if got := testutil.ReadFile(t, dir, "boot/loader/entries/a.conf"); got != "options quiet\n" {
		t.Errorf("a.conf = %q", got)
	}
}

func TestRestoreGrubRegenerationFailureKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, GrubDefaults, "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet acpi.ec_no_wakeup=1\"\n")
	fake := (&system.Fake{}).On("grub-mkconfig", system.Fail())
	ed := &Editor{Root: sysfs.New(dir), Runner: fake}

	backups := []journal.Backup{{Path: "/" + GrubDefaults, OriginalContent: "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n"}}
	failed, err := ed.RestoreBackups(backups)
	if !errs.Is(err, errs.Bootloader) {
		t.Fatalf("err = %v, want Bootloader", err)
	}
	if len(failed) != 1 || failed[0] != backups[0] {
		t.Errorf("failed = %+v", failed)
	}
	if got := testutil.ReadFile(t, dir, GrubDefaults); got != backups[0].OriginalContent {
		t.Errorf("grub defaults = %q", got)
	}
}
