package system

import "fmt"

// ServiceQuerier answers the two questions bop asks about a unit.
type ServiceQuerier interface {
	IsActive(name string) bool
	IsEnabled(name string) bool
}

// Systemctl drives systemd through the systemctl binary.
type Systemctl struct {
	R Runner
}

func (s Systemctl) run(args ...string) error {
	_, err := s.R.Run(Cmd("systemctl", args...))
	return err
}

// IsActive is `systemctl is-active --quiet`.
func (s Systemctl) IsActive(name string) bool { return s.run("is-active", "--quiet", name) == nil }

// IsEnabled is `systemctl is-enabled --quiet`.
func (s Systemctl) IsEnabled(name string) bool { return s.run("is-enabled", "--quiet", name) == nil }

func (s Systemctl) Start(name string) error  { return s.run("start", name) }
func (s Systemctl) Stop(name string) error   { return s.run("stop", name) }
func (s Systemctl) Enable(name string) error { return s.run("enable", name) }
func (s Systemctl) Mask(name string) error   { return s.run("mask", name) }
func (s Systemctl) Unmask(name string) error { return s.run("unmask", name) }

// Disable is `systemctl disable`.
func (s Systemctl) Disable(name string) error { return s.run("disable", name) }

// DaemonReload is `systemctl daemon-reload`.
func (s Systemctl) DaemonReload() error { return s.run("daemon-reload") }

// DisableService stops name and disables it, masking it when disable is
// refused (static or alias units).
func (s Systemctl) DisableService(name string) error {
	_ = s.Stop(name)
	if err := s.Disable(name); err != nil {
		if merr := s.Mask(name); merr != nil {
			return fmt.Errorf("disabling %s: %w", name, err)
		}
	}
	return nil
}

// EnableService undoes DisableService: unmask, then enable.
func (s Systemctl) EnableService(name string) error {
	if err := s.Unmask(name); err != nil {
		return fmt.Errorf("unmasking %s: %w", name, err)
	}
	if err := s.Enable(name); err != nil {
		return fmt.Errorf("enabling %s: %w", name, err)
	}
	return nil
}
