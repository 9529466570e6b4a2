package system

import (
	"fmt"
	"strings"
	"time"
)

// WifiPowerSave returns the output of `iw dev <iface> get power_save`.
func WifiPowerSave(r Runner, iface string) (string, error) {
	out, err := r.Run(Cmd("iw", "dev", iface, "get", "power_save"))
	return strings.TrimSpace(out), err
}

// GrubMkconfig regenerates the GRUB menu at out.
func GrubMkconfig(r Runner, out string) error {
	if _, err := r.Run(Cmd("grub-mkconfig", "-o", out)); err != nil {
		return fmt.Errorf("grub-mkconfig: %w", err)
	}
	return nil
}

// UdevReload reloads rules and replays power_supply events so a rule change
// takes effect without replugging.
func UdevReload(r Runner) error {
	if _, err := r.Run(Cmd("udevadm", "control", "--reload-rules")); err != nil {
		return fmt.Errorf("udevadm reload: %w", err)
	}
	if _, err := r.Run(Cmd("udevadm", "trigger", "--subsystem-match=power_supply")); err != nil {
		return fmt.Errorf("udevadm trigger: %w", err)
	}
	return nil
}

// Syslog writes msg to the system log through logger(1).
func Syslog(r Runner, tag, prio, msg string) error {
	_, err := r.Run(Cmd("logger", "-t", tag, "-p", "user."+prio, msg))
	return err
}

// Timestamp returns `date --iso-8601=seconds`, or the clock formatted as
// RFC3339 when date is unavailable.
func Timestamp(r Runner) string {
	if out, err := r.Run(Cmd("date", "--iso-8601=seconds")); err == nil {
		if s := strings.TrimSpace(out); s != "" {
			return s
		}
	}
	return time.Now().Format(time.RFC3339)
}

// Inhibitor is one active systemd inhibitor lock.
type Inhibitor struct {
	Who  string `json:"who"`
	What string `json:"what"`
	Why  string `json:"why"`
}

// Inhibitors lists active inhibitor locks. Failure to run the tool yields
// none.
func Inhibitors(r Runner) []Inhibitor {
	out, err := r.Run(Cmd("systemd-inhibit", "--list", "--no-pager", "--no-legend"))
	if err != nil {
		return nil
	}
	return ParseInhibitors(out)
}

// ParseInhibitors parses `systemd-inhibit --list --no-legend` output. The
// column layout varies between systemd versions, so What and Why are best
// effort; any line with at least four fields counts as an inhibitor.
func ParseInhibitors(out string) []Inhibitor {
	var list []Inhibitor
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 4 {
			continue
		}
		inh := Inhibitor{Who: f[0], What: f[3]}
		if len(f) > 4 {
			inh.Why = f[4]
		}
		list = append(list, inh)
	}
	return list
}
