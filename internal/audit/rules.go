package audit

import (
	"github.com/vesaa/bop/internal/system"
)

// Options carries what the stateful probes need and the policy mode.
type Options struct {
	Aggressive bool
	Services   system.ServiceQuerier
	Runner     system.Runner
	// Framework enables notes that only apply to Framework boards.
	Framework bool
}

// Category names, in display order.
const (
	CatCPU      = "CPU Power"
	CatPCI      = "PCIe Power"
	CatKernel   = "Kernel Params"
	CatSleep    = "Sleep"
	CatAudio    = "Audio"
	CatDisplay  = "Display"
	CatGPU      = "GPU Power"
	CatNetwork  = "Network"
	CatServices = "Services"
	CatSysctl   = "Sysctl"
	CatUSB      = "USB Power"
)

// Rules returns the full rule set in category order.
func Rules(opt Options) []Rule {
	rules := []Rule{
		CPUPower,
		PCIPower(opt.Aggressive),
		KernelParams,
		Sleep,
		Audio,
		Display(opt.Framework),
		GPUPower,
	}
	if opt.Runner != nil {
		rules = append(rules, NetworkPower(opt.Runner))
	}
	if opt.Services != nil {
		rules = append(rules, Services(opt.Services))
	}
	return append(rules, Sysctl, USBPower(opt.Aggressive))
}
