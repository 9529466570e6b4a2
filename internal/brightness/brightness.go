// Package brightness dims the first backlight device on battery and puts it
// back afterwards.
package brightness

import (
	"strconv"

	"github.com/vesaa/bop/internal/sysfs"
)

const classDir = "sys/class/backlight"

// Settings control dimming.
type Settings struct {
	AutoDim    bool
	DimPercent int
}

// Percent returns DimPercent clamped to 1..100.
func (s Settings) Percent() uint64 {
	switch {
	case s.DimPercent < 1:
		return 1
	case s.DimPercent > 100:
		return 100
	}
	return uint64(s.DimPercent)
}

// find returns the first backlight directory, relative to root.
func find(root sysfs.Root) (string, bool) {
	names, err := root.ListDir(classDir)
	if err != nil || len(names) == 0 {
		return "", false
	}
	return classDir + "/" + names[0], true
}

func readUint(root sysfs.Root, rel string) (uint64, error) {
	v, ok, err := root.ReadOptional(rel)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Dim lowers brightness to the configured share of its current value and
// returns the value it replaced. It does nothing (nil, nil) when dimming is
// off, there is no backlight, or the panel is already at or below target;
// the target never drops below 1.
func Dim(root sysfs.Root, s Settings) (*uint64, error) {
	if !s.AutoDim {
		return nil, nil
	}
	base, ok := find(root)
	if !ok {
		return nil, nil
	}
	current, err := readUint(root, base+"/brightness")
	if err != nil || current == 0 {
		return nil, err
	}
	limit, err := readUint(root, base+"/max_brightness")
	if err != nil || limit == 0 {
		return nil, err
	}
	target := max(current*s.Percent()/100, 1)
	if target >= current {
		return nil, nil
	}
	if err := root.Write(base+"/brightness", strconv.FormatUint(target, 10)); err != nil {
		return nil, err
	}
	return &current, nil
}

// Restore writes original back. No backlight is not an error.
func Restore(root sysfs.Root, original uint64) error {
	base, ok := find(root)
	if !ok {
		return nil
	}
	return root.Write(base+"/brightness", strconv.FormatUint(original, 10))
}
