// Package notify sends a desktop notification to the first graphical
// session. bop runs as root from udev, so the message is delivered through
// runuser into the user's session bus.
package notify

import (
	"log"
	"strings"

	"github.com/vesaa/bop/internal/system"
)

// Session is a logind session that can show notifications.
type Session struct {
	ID   string
	UID  string
	User string
	Type string
}

// Notifier delivers notifications through r.
type Notifier struct {
	R system.Runner
}

// Graphical returns the first wayland or x11 session.
func (n Notifier) Graphical() (Session, bool) {
	out, err := n.R.Run(system.Cmd("loginctl", "list-sessions", "--no-legend", "--no-pager"))
	if err != nil {
		return Session{}, false
	}
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 3 {
			continue
		}
		typ, err := n.R.Run(system.Cmd("loginctl", "show-session", f[0], "--property=Type", "--value"))
		if err != nil {
			continue
		}
		if typ = strings.TrimSpace(typ); typ == "wayland" || typ == "x11" {
			return Session{ID: f[0], UID: f[1], User: f[2], Type: typ}, true
		}
	}
	return Session{}, false
}

// Send shows summary and body in the first graphical session. No session is
// not an error; delivery failures are logged and returned.
func (n Notifier) Send(summary, body string) error {
	s, ok := n.Graphical()
	if !ok {
		return nil
	}
	_, err := n.R.Run(system.Command{
		Name: "runuser",
		Args: []string{"-u", s.User, "--", "notify-send", "-a", "bop", summary, body},
		Env:  []string{"DBUS_SESSION_BUS_ADDRESS=unix:path=/run/user/" + s.UID + "/bus"},
	})
	if err != nil {
		log.Printf("[notify] warning: sending to %s: %v", s.User, err)
	}
	return err
}
