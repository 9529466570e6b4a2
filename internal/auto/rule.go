package auto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
)

const ruleHeader = "# Managed by bop — do not edit"

// RuleContent is the udev rule that runs bop on every AC plug event.
// Logitech receiver batteries (hidpp_battery) are excluded; they report
// change events constantly.
func RuleContent(binary string, aggressive bool) string {
	cmd := binary + " auto"
	if aggressive {
		cmd = binary + " --aggressive auto"
	}
	return fmt.Sprintf("%s\nACTION==\"change\", SUBSYSTEM==\"power_supply\", KERNEL!=\"hidpp_battery*\", RUN+=\"%s\"\n",
		ruleHeader, cmd)
}

// Rule manages the udev rule file at Path under Root.
type Rule struct {
	Root   sysfs.Root
	Path   string
	Runner system.Runner
}

// Install writes the rule and reloads udev.
func (r Rule) Install(binary string, aggressive bool) error {
	path := r.Root.Path(r.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(RuleContent(binary, aggressive)), 0o644); err != nil {
		return fmt.Errorf("writing udev rule: %w", err)
	}
	return system.UdevReload(r.Runner)
}

// Remove deletes the rule and reloads udev. removed is false when no rule
// was installed.
func (r Rule) Remove() (removed bool, err error) {
	if err := os.Remove(r.Root.Path(r.Path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("removing udev rule: %w", err)
	}
	return true, system.UdevReload(r.Runner)
}

// Installed reports whether the rule exists and whether it runs in
// aggressive mode.
func (r Rule) Installed() (installed, aggressive bool) {
	content, err := r.Root.ReadRaw(r.Path)
	if err != nil {
		return false, false
	}
	return true, strings.Contains(content, "--aggressive")
}
