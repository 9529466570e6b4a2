package output

import (
	"fmt"
	"path"
	"strings"

	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/auto"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/models"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/revert"
	"github.com/vesaa/bop/internal/status"
	"github.com/vesaa/bop/internal/wakeup"
)

// AuditReport is what `bop audit` shows and exports.
type AuditReport struct {
	Profile  string                `json:"profile"`
	Host     *hardware.HostSummary `json:"host,omitempty"`
	Hardware *hardware.View        `json:"hardware,omitempty"`
	Score    int                   `json:"score"`
	Findings []audit.Finding       `json:"findings"`
}

// Audit renders findings highest severity first, then the score.
func (p *Printer) Audit(r AuditReport) error {
	if p.Structured() {
		return p.Export(r)
	}
	p.line("%s", p.paint(titleStyle, "bop audit: "+r.Profile))
	if h := r.Host; h != nil {
		p.line("%s", p.paint(faintStyle, fmt.Sprintf("%s · %s · kernel %s · %d cores · %d MB",
			h.Hostname, h.OS, h.Kernel, h.LogicalCores, h.MemTotalMB)))
	}
	if hw := r.Hardware; hw != nil {
		p.line("%s", p.paint(faintStyle, fmt.Sprintf("%s · %s · battery %s",
			hw.DMI.ProductName, hw.CPU.ScalingDriver, batteryLine(hw.Battery))))
	}
	p.line("")

	if len(r.Findings) == 0 {
		p.line("  %s nothing to optimize", p.mark(true))
	}
	for _, f := range r.Findings {
		p.line("  %s %s %s", p.severity(f.Severity), p.paint(headerStyle, f.Category+":"), f.Description)
		if f.Current != "" || f.Recommended != "" {
			p.line("      %s %s → %s", p.paint(faintStyle, "current"), f.Current, f.Recommended)
		}
		if f.Impact != "" {
			p.line("      %s", p.paint(faintStyle, f.Impact))
		}
	}

	c := audit.Counts(r.Findings)
	p.line("")
	p.line("%s %d/100  (%d high, %d medium, %d low, %d info)",
		p.paint(titleStyle, "Score:"), r.Score, c[audit.High], c[audit.Medium], c[audit.Low], c[audit.Info])
	return nil
}

func batteryLine(b hardware.Battery) string {
	if !b.Present {
		return "absent"
	}
	if b.Capacity != nil {
		return fmt.Sprintf("%d%% %s", *b.Capacity, strings.ToLower(b.Status))
	}
	return strings.ToLower(b.Status)
}

func (p *Printer) severity(s audit.Severity) string {
	label := fmt.Sprintf("%-8s", "["+s.String()+"]")
	switch s {
	case audit.High:
		return p.paint(badStyle, label)
	case audit.Medium:
		return p.paint(warnStyle, label)
	case audit.Low:
		return p.paint(okStyle, label)
	}
	return p.paint(faintStyle, label)
}

// Plan lists what apply would change.
func (p *Printer) Plan(pl *plan.Plan) error {
	if p.Structured() {
		return p.Export(pl)
	}
	if pl.Empty() {
		p.line("  %s system already optimized, nothing to change", p.mark(true))
		return nil
	}
	p.line("%s", p.paint(titleStyle, fmt.Sprintf("Planned changes (%d sysfs writes)", len(pl.SysfsWrites))))
	for _, w := range pl.SysfsWrites {
		p.line("  → %s = %s  %s", w.Path, w.Value, p.paint(faintStyle, w.Description))
	}
	p.list("Kernel parameters", pl.KernelParams)
	p.list("Services to disable", pl.ServicesToDisable)
	p.list("ACPI wakeup to disable", pl.ACPIWakeupDisable)
	var files []string
	for _, m := range pl.ModprobeConfigs {
		files = append(files, m.Filename)
	}
	p.list("Modprobe files", files)
	if pl.SystemdService && len(pl.SysfsWrites) > 0 {
		p.line("%s persist sysfs values at boot", p.paint(headerStyle, "Systemd unit:"))
	}
	return nil
}

func (p *Printer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	p.line("%s %s", p.paint(headerStyle, title+":"), strings.Join(items, " "))
}

// Status shows which recorded changes are still in effect.
func (p *Printer) Status(r *status.Report) error {
	if p.Structured() {
		return p.Export(r)
	}
	p.line("%s", p.paint(titleStyle, "Optimizations applied "+r.Timestamp))
	for _, s := range r.Sysfs {
		actual := "(missing)"
		if s.Actual != nil {
			actual = *s.Actual
		}
		if s.Active {
			p.line("  %s %s = %s", p.mark(true), s.Path, s.Expected)
		} else {
			p.line("  %s %s = %s (expected %s)", p.mark(false), s.Path, actual, s.Expected)
		}
	}
	for _, w := range r.ACPIWakeup {
		p.line("  %s wakeup %s disabled", p.mark(w.Active), w.Device)
	}
	for _, k := range r.KernelParams {
		note := ""
		if !k.InCmdline {
			note = p.paint(faintStyle, " (pending reboot)")
		}
		p.line("  %s kernel %s%s", p.mark(k.InCmdline), k.Param, note)
	}
	for _, s := range r.Services {
		p.line("  %s service %s stopped", p.mark(s.StillStopped), s.Name)
	}
	for _, f := range r.SystemdUnits {
		p.line("  %s unit %s", p.mark(f.Exists), f.Path)
	}
	for _, f := range r.ModprobeFiles {
		p.line("  %s modprobe %s", p.mark(f.Exists), f.Path)
	}
	p.line("")
	p.line("%d of %d changes active, %d drifted", r.Active(), r.Total(), r.Drifted())
	return nil
}

// NotApplied is the status output when no journal exists.
func (p *Printer) NotApplied() error {
	if p.Structured() {
		return p.Export(map[string]bool{"applied": false})
	}
	p.line("No optimizations applied. Run `sudo bop apply` first.")
	return nil
}

// Journal summarizes a journal, as shown by `apply` when it finishes.
func (p *Printer) Journal(j *journal.Journal) error {
	if p.Structured() {
		return p.Export(j)
	}
	p.line("%s %d changes recorded in the journal", p.mark(true), j.Entries())
	if len(j.KernelParamsAdded) > 0 {
		p.line("  → kernel parameters take effect after a reboot")
	}
	return nil
}

// Reverted summarizes a revert. A partial one names the journal it kept.
func (p *Printer) Reverted(res *revert.Result, journalPath string) {
	if !res.Complete {
		p.line("  %s %d entries kept in %s; run `bop revert` again after fixing the errors.",
			p.mark(false), res.Remaining.Entries(), journalPath)
		return
	}
	p.line("  %s %d changes reverted.", p.mark(true), res.Undone)
	if res.RebootRequired {
		p.line("  → Reboot to drop the kernel parameters from the running kernel.")
	}
}

// History lists history entries, newest first.
func (p *Printer) History(entries []models.Entry) error {
	if p.Structured() {
		return p.Export(entries)
	}
	if len(entries) == 0 {
		p.line("No history recorded.")
		return nil
	}
	for _, e := range entries {
		p.line("%s  %-6s  %s", p.paint(faintStyle, e.At.Local().Format("2006-01-02 15:04")), e.Kind, e.Summary)
	}
	return nil
}

// Controllers lists USB controller wake sources with their devices.
func (p *Printer) Controllers(cs []wakeup.Controller) error {
	if p.Structured() {
		return p.Export(cs)
	}
	for _, c := range cs {
		state := p.paint(faintStyle, "disabled")
		if c.Enabled {
			state = p.paint(okStyle, "enabled ")
		}
		devices := p.paint(faintStyle, "no devices")
		if c.HasDevices {
			devices = strings.Join(c.Devices, ", ")
		}
		p.line("  %-5s %s  %-13s %s", c.Name, state, c.PCIAddress, devices)
	}
	return nil
}

// Actions shows wake scan decisions.
func (p *Printer) Actions(actions []wakeup.Action, dryRun bool) error {
	if p.Structured() {
		return p.Export(actions)
	}
	if len(actions) == 0 {
		p.line("  %s wake sources already match attached devices", p.mark(true))
		return nil
	}
	verb := map[bool]string{true: "enable", false: "disable"}
	for _, a := range actions {
		prefix := "→"
		if !dryRun {
			prefix = p.mark(true)
		}
		p.line("  %s %s %s: %s", prefix, verb[a.Enable], a.Device, a.Reason)
	}
	return nil
}

// AutoStatus shows the auto-switch state.
func (p *Printer) AutoStatus(st auto.Status, rulePath string) error {
	if p.Structured() {
		return p.Export(st)
	}
	mode := "normal"
	if st.Aggressive {
		mode = "aggressive"
	}
	if st.Enabled {
		p.line("  %s auto-switch enabled (%s mode, %s)", p.mark(true), mode, path.Base(rulePath))
	} else {
		p.line("  %s auto-switch disabled", p.mark(false))
	}
	switch {
	case !st.ACFound:
		p.line("  %s no AC adapter detected", p.mark(false))
	case st.OnAC:
		p.line("  → on AC power")
	default:
		p.line("  → on battery")
	}
	if st.Applied {
		p.line("  → optimizations currently applied")
	}
	return nil
}
