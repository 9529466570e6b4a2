package hardware

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSummary is the operating-system context shown above an audit and
// stored with each history record. It describes the running host, so it is
// only collected when the root is the real filesystem.
type HostSummary struct {
	Hostname     string        `json:"hostname"`
	OS           string        `json:"os"`
	Kernel       string        `json:"kernel"`
	Uptime       time.Duration `json:"uptime"`
	CPUModel     string        `json:"cpu_model,omitempty"`
	LogicalCores int           `json:"logical_cores"`
	MemTotalMB   uint64        `json:"mem_total_mb"`
}

var (
	hostOnce sync.Once
	hostSum  HostSummary
)

// Host collects the summary once per process.
func Host() HostSummary {
	hostOnce.Do(func() { hostSum = collectHost() })
	return hostSum
}

func collectHost() HostSummary {
	s := HostSummary{OS: detailedOS()}

	if h, err := os.Hostname(); err == nil {
		s.Hostname = h
	}
	if k, err := host.KernelVersion(); err == nil {
		s.Kernel = k
	}
	if up, err := host.Uptime(); err == nil {
		s.Uptime = time.Duration(up) * time.Second
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		s.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalMB = vm.Total / (1024 * 1024)
	}
	return s
}

// detailedOS returns "platform version" from gopsutil, or runtime.GOOS.
func detailedOS() string {
	info, err := host.Info()
	if err == nil && info.Platform != "" {
		if info.PlatformVersion != "" {
			return fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion) // e.g. "fedora 40"
		}
		return info.Platform
	}
	return runtime.GOOS
}
