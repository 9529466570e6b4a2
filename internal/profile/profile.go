// Package profile selects the rule set for the detected machine. A profile
// is a name, a predicate over the hardware view, and the rules it runs; the
// first matching profile wins.
package profile

import (
	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
)

// Profile is a hardware-specific rule set.
type Profile struct {
	Name    string
	Matches func(hw *hardware.View) bool
	// Rules builds the rule list for the given options.
	Rules func(opt audit.Options) []audit.Rule
}

// Framework16AMD covers the Framework Laptop 16 with Ryzen 7040.
var Framework16AMD = Profile{
	Name: "Framework Laptop 16 (AMD Ryzen 7040 Series)",
	Matches: func(hw *hardware.View) bool {
		return hw.DMI.IsFramework16() && hw.CPU.IsAMD()
	},
	Rules: func(opt audit.Options) []audit.Rule {
		opt.Framework = true
		return audit.Rules(opt)
	},
}

// GenericLaptop covers any battery-powered machine.
var GenericLaptop = Profile{
	Name: "Generic Linux Laptop",
	Matches: func(hw *hardware.View) bool {
		return hw.Battery.Present
	},
	Rules: func(opt audit.Options) []audit.Rule {
		opt.Framework = false
		return audit.Rules(opt)
	},
}

// All lists profiles from most to least specific.
var All = []Profile{Framework16AMD, GenericLaptop}

// Detect returns the first profile matching hw.
func Detect(hw *hardware.View) (*Profile, error) {
	for i := range All {
		if All[i].Matches(hw) {
			return &All[i], nil
		}
	}
	return nil, errs.New(errs.Detection, "no supported hardware profile matches this machine (no battery found)")
}

// Registry builds the audit registry for the profile.
func (p *Profile) Registry(opt audit.Options) *audit.Registry {
	return audit.NewRegistry(p.Rules(opt)...)
}
