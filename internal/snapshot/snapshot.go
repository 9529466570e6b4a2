// Package snapshot captures the /sys and /proc files hardware detection
// reads into a single JSON document, and turns such a document back into an
// on-disk tree that sysfs.Root can be pointed at. Bug reports carry a
// snapshot; tests replay it.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
)

// Version is the document format version.
const Version = 1

// Snapshot is a captured input tree. Paths are relative to the root without
// a leading slash; file contents are trimmed.
type Snapshot struct {
	Version   int               `json:"version" yaml:"version"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
	Files     map[string]string `json:"files" yaml:"files"`
	Dirs      []string          `json:"dirs" yaml:"dirs"`
	// Symlinks maps link locations to their targets. Absolute targets are
	// relative to the root and start with "/".
	Symlinks map[string]string `json:"symlinks" yaml:"symlinks"`
}

var singleFiles = []string{
	"sys/class/dmi/id/board_vendor",
	"sys/class/dmi/id/board_name",
	"sys/class/dmi/id/product_name",
	"sys/class/dmi/id/product_family",
	"sys/class/dmi/id/bios_version",
	"sys/devices/system/cpu/cpufreq/boost",
	"sys/devices/system/cpu/amd_pstate/status",
	"sys/firmware/acpi/platform_profile",
	"sys/firmware/acpi/platform_profile_choices",
	"sys/power/state",
	"sys/power/mem_sleep",
	"sys/module/pcie_aspm/parameters/policy",
	"sys/module/snd_hda_intel/parameters/power_save",
	"sys/module/snd_hda_intel/parameters/power_save_controller",
	"sys/module/amdgpu/parameters/abmlevel",
	"proc/sys/kernel/nmi_watchdog",
	"proc/sys/vm/dirty_writeback_centisecs",
	"proc/cpuinfo",
	"proc/cmdline",
	"proc/acpi/wakeup",
}

var (
	cpufreqFiles = []string{"scaling_driver", "scaling_governor", "energy_performance_preference", "energy_performance_available_preferences"}
	pciFiles     = []string{"class", "vendor", "device", "power/control", "power/runtime_status"}
	usbFiles     = []string{"power/control", "product", "manufacturer", "idVendor", "idProduct"}
	gpuFiles     = []string{"vendor", "power_state", "power_dpm_force_performance_level"}
	backlight    = []string{"brightness", "max_brightness", "actual_brightness"}
	supplyFiles  = []string{
		"type", "online", "present", "status", "capacity",
		"energy_now", "energy_full", "energy_full_design", "power_now",
		"charge_now", "charge_full", "charge_full_design", "current_now",
		"voltage_now", "cycle_count",
	}
	powercapFiles = []string{"name", "energy_uj"}
)

type capturer struct {
	root sysfs.Root
	snap *Snapshot
	dirs map[string]bool
}

// Capture reads every detection input that exists under root. Unreadable
// files are left out.
func Capture(root sysfs.Root, r system.Runner) *Snapshot {
	c := &capturer{
		root: root,
		snap: &Snapshot{
			Version:   Version,
			Timestamp: system.Timestamp(r),
			Files:     map[string]string{},
			Symlinks:  map[string]string{},
		},
		dirs: map[string]bool{},
	}
	for _, f := range singleFiles {
		c.file(f)
	}
	c.cpus()
	c.each("sys/bus/pci/devices", func(base, _ string) {
		c.files(base, pciFiles)
		c.link(base + "/driver")
		c.dir(base + "/power")
	})
	c.each("sys/bus/usb/devices", func(base, name string) {
		if strings.Contains(name, ":") {
			return
		}
		c.files(base, usbFiles)
		c.dir(base + "/power")
	})
	c.each("sys/class/drm", func(base, name string) {
		switch {
		case strings.Contains(name, "-"):
			c.file(base + "/status")
		case strings.HasPrefix(name, "card"):
			dev := base + "/device"
			c.link(dev)
			c.dir(dev)
			c.files(dev, gpuFiles)
			c.link(dev + "/driver")
		}
	})
	c.each("sys/class/backlight", func(base, _ string) {
		c.dir(base)
		c.files(base, backlight)
	})
	c.each("sys/class/net", func(base, _ string) {
		if !c.root.IsDir(base + "/wireless") {
			return
		}
		c.dir(base + "/wireless")
		c.link(base + "/device")
		c.link(base + "/device/driver")
	})
	c.each("sys/class/power_supply", func(base, _ string) {
		c.dir(base)
		c.files(base, supplyFiles)
	})
	c.each("sys/class/powercap", func(base, _ string) {
		c.files(base, powercapFiles)
	})

	for d := range c.dirs {
		c.snap.Dirs = append(c.snap.Dirs, d)
	}
	sort.Strings(c.snap.Dirs)
	return c.snap
}

func (c *capturer) cpus() {
	const base = "sys/devices/system/cpu"
	names, err := c.root.ListDir(base)
	if err != nil {
		return
	}
	for _, name := range names {
		path := base + "/" + name
		if name == "cpuidle" {
			c.dir(path)
			continue
		}
		if n, ok := strings.CutPrefix(name, "cpu"); !ok || n == "" || strings.Trim(n, "0123456789") != "" {
			continue
		}
		c.dir(path)
		c.files(path+"/cpufreq", cpufreqFiles)
	}
}

// each records the entries of dir (and any that are symlinks) and calls fn
// with each entry's path and name.
func (c *capturer) each(dir string, fn func(base, name string)) {
	names, err := c.root.ListDir(dir)
	if err != nil {
		return
	}
	for _, name := range names {
		base := dir + "/" + name
		if !c.link(base) {
			c.dir(base)
		}
		fn(base, name)
	}
}

func (c *capturer) files(base string, names []string) {
	for _, n := range names {
		c.file(base + "/" + n)
	}
}

func (c *capturer) file(rel string) {
	if v, ok, err := c.root.ReadOptional(rel); err == nil && ok {
		c.snap.Files[rel] = v
	}
}

func (c *capturer) dir(rel string) {
	if c.root.IsDir(rel) {
		c.dirs[rel] = true
	}
}

// link records rel if it is a symlink and reports whether it was.
func (c *capturer) link(rel string) bool {
	target, err := os.Readlink(c.root.Path(rel))
	if err != nil {
		return false
	}
	if filepath.IsAbs(target) {
		target = c.root.Rel(target)
	}
	c.snap.Symlinks[rel] = target
	return true
}

// Save writes the snapshot as indented JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", path, s.Version)
	}
	return &s, nil
}

// Materialize recreates the snapshot under dir and returns a Root for it.
// Links come first so directories and files captured through a link land in
// its target.
func Materialize(s *Snapshot, dir string) (sysfs.Root, error) {
	root := sysfs.New(dir)
	links := make([]string, 0, len(s.Symlinks))
	for l := range s.Symlinks {
		links = append(links, l)
	}
	sort.Strings(links)
	for _, l := range links {
		if err := makeLink(root, dir, l, s.Symlinks[l]); err != nil {
			return root, err
		}
	}

	for _, d := range s.Dirs {
		if err := os.MkdirAll(root.Path(d), 0o755); err != nil {
			return root, err
		}
	}
	for rel, content := range s.Files {
		path := root.Path(rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return root, err
		}
		if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
			return root, err
		}
	}
	return root, nil
}

func makeLink(root sysfs.Root, dir, rel, target string) error {
	path := root.Path(rel)
	if _, err := os.Lstat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var resolved string
	if filepath.IsAbs(target) {
		target = root.Path(target)
		resolved = target
	} else {
		parent, err := filepath.EvalSymlinks(filepath.Dir(path))
		if err != nil {
			return err
		}
		resolved = filepath.Join(parent, target)
	}
	// Targets outside the tree are linked but not created.
	if inside(dir, resolved) {
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return err
		}
	}
	if err := os.Symlink(target, path); err != nil {
		return fmt.Errorf("linking %s: %w", rel, err)
	}
	return nil
}

func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}
