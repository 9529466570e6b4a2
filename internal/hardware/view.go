// Package hardware projects /sys, /proc and DMI into a typed, read-only
// View of the machine. Construction is a pure function of a sysfs.Root.
package hardware

import (
	"strconv"
	"strings"

	"github.com/vesaa/bop/internal/sysfs"
)

// View is the normalized hardware fingerprint built once per invocation.
type View struct {
	DMI      DMI         `json:"dmi"`
	CPU      CPU         `json:"cpu"`
	GPU      GPU         `json:"gpu"`
	Battery  Battery     `json:"battery"`
	AC       AC          `json:"ac"`
	PCI      PCI         `json:"pci"`
	USB      []USBDevice `json:"usb"`
	Network  Network     `json:"network"`
	Platform Platform    `json:"platform"`
	Cmdline  string      `json:"cmdline"`
}

// Detect reads every input surface under root. Missing or permission-denied
// files mean "feature not present"; any other read failure is returned.
func Detect(root sysfs.Root) (*View, error) {
	r := &reader{root: root}
	v := &View{
		DMI:      detectDMI(r),
		CPU:      detectCPU(r),
		Battery:  detectBattery(r),
		AC:       detectAC(r),
		PCI:      detectPCI(r),
		USB:      detectUSB(r),
		Network:  detectNetwork(r),
		Platform: detectPlatform(r),
		Cmdline:  r.str("proc/cmdline"),
	}
	v.GPU = detectGPU(r, v.Cmdline)
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}

// HasKernelParam reports whether the running cmdline carries name, either as
// a bare flag or as name=value.
func (v *View) HasKernelParam(name string) bool {
	for _, tok := range strings.Fields(v.Cmdline) {
		if tok == name || strings.HasPrefix(tok, name+"=") {
			return true
		}
	}
	return false
}

// KernelParamValue returns the value of name=value on the cmdline.
func (v *View) KernelParamValue(name string) (string, bool) {
	for _, tok := range strings.Fields(v.Cmdline) {
		if val, ok := strings.CutPrefix(tok, name+"="); ok {
			return val, true
		}
	}
	return "", false
}

// ── reader ───────────────────────────────────────────────────────────────────

// reader wraps Root with detection semantics: absence yields zero values and
// the first hard failure is remembered for Detect to return.
type reader struct {
	root sysfs.Root
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) str(rel string) string {
	v, _, err := r.root.ReadOptional(rel)
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) u64(rel string) *uint64 {
	s := r.str(rel)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func (r *reader) list(rel string) []string {
	if !r.root.Exists(rel) {
		return nil
	}
	names, err := r.root.ListDir(rel)
	if err != nil {
		if sysfs.IsAbsent(err) {
			return nil
		}
		r.fail(err)
	}
	return names
}

func (r *reader) link(rel string) string {
	name, _ := r.root.LinkBase(rel)
	return name
}

// ParseBracketed splits a sysfs choice list such as "s2idle [deep]" into the
// active entry and the full list with brackets removed.
func ParseBracketed(s string) (active string, choices []string) {
	for _, tok := range strings.Fields(s) {
		if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
			tok = strings.TrimSuffix(strings.TrimPrefix(tok, "["), "]")
			active = tok
		}
		choices = append(choices, tok)
	}
	return active, choices
}
