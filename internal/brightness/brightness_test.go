package brightness

import (
	"strconv"
	"testing"

	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/testutil"
)

func backlight(t *testing.T, cur, limit uint64) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, classDir+"/amdgpu_bl1/brightness", strconv.FormatUint(cur, 10))
	testutil.WriteFile(t, dir, classDir+"/amdgpu_bl1/max_brightness", strconv.FormatUint(limit, 10))
	return dir
}

func TestDim(t *testing.T) {
	tests := []struct {
		name       string
		cur, limit uint64
		settings   Settings
		want       string // brightness after Dim
		changed    bool
	}{
		{"sixty percent", 1000, 1000, Settings{AutoDim: true, DimPercent: 60}, "600", true},
		{"disabled", 1000, 1000, Settings{DimPercent: 60}, "1000", false},
		{"already dim", 50, 1000, Settings{AutoDim: true, DimPercent: 100}, "50", false},
		{"never zero", 1, 1000, Settings{AutoDim: true, DimPercent: 1}, "1", false},
		{"zero max", 100, 0, Settings{AutoDim: true, DimPercent: 60}, "100", false},
		{"percent clamped", 200, 255, Settings{AutoDim: true, DimPercent: 0}, "2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := backlight(t, tt.cur, tt.limit)
			orig, err := Dim(sysfs.New(dir), tt.settings)
			if err != nil {
				t.Fatal(err)
			}
			if (orig != nil) != tt.changed {
				t.Fatalf("original = %v, changed = %v", orig, tt.changed)
			}
			if orig != nil && *orig != tt.cur {
				t.Errorf("original = %d, want %d", *orig, tt.cur)
			}
			if got := testutil.ReadFile(t, dir, classDir+"/amdgpu_bl1/brightness"); got != tt.want {
				t.Errorf("brightness = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNoBacklight(t *testing.T) {
	dir := t.TempDir()
	if orig, err := Dim(sysfs.New(dir), Settings{AutoDim: true, DimPercent: 60}); orig != nil || err != nil {
		t.Errorf("Dim = %v, %v", orig, err)
	}
	testutil.Mkdir(t, dir, classDir)
	if orig, err := Dim(sysfs.New(dir), Settings{AutoDim: true, DimPercent: 60}); orig != nil || err != nil {
		t.Errorf("Dim on empty class = %v, %v", orig, err)
	}
	if err := Restore(sysfs.New(dir), 1000); err != nil {
		t.Errorf("Restore = %v", err)
	}
}

func TestRestore(t *testing.T) {
	dir := backlight(t, 600, 1000)
	if err := Restore(sysfs.New(dir), 1000); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ReadFile(t, dir, classDir+"/amdgpu_bl1/brightness"); got != "1000" {
		t.Errorf("brightness = %q", got)
	}
}
