// Package models defines the GORM models of the bop history database.
package models

import (
	"time"

	"gorm.io/gorm"
)

// EventKind names what produced an Event.
type EventKind string

const (
	EventApply  EventKind = "apply"
	EventRevert EventKind = "revert"
	EventAuto   EventKind = "auto"
)

// AuditRun is one `bop audit` result together with the host it ran on.
type AuditRun struct {
	gorm.Model

	Profile  string    `gorm:"index" json:"profile" yaml:"profile"`
	Score    int       `json:"score" yaml:"score"`
	High     int       `json:"high" yaml:"high"`
	Medium   int       `json:"medium" yaml:"medium"`
	Low      int       `json:"low" yaml:"low"`
	Info     int       `json:"info" yaml:"info"`
	RanAt    time.Time `gorm:"index" json:"ran_at" yaml:"ran_at"`
	Findings string    `json:"-" yaml:"-"` // JSON-encoded []audit.Finding

	// ── Host context (gopsutil) ─────────────────────────────────────────────
	Hostname string `json:"hostname" yaml:"hostname"`
	OS       string `json:"os" yaml:"os"`
	Kernel   string `json:"kernel" yaml:"kernel"`
	CPUModel string `json:"cpu_model" yaml:"cpu_model"`
	MemMB    uint64 `json:"mem_mb" yaml:"mem_mb"`
}

// Event is one apply, revert or auto run.
type Event struct {
	gorm.Model

	Kind    EventKind `gorm:"index;not null" json:"kind" yaml:"kind"`
	Outcome string    `json:"outcome" yaml:"outcome"`
	Detail  string    `json:"detail" yaml:"detail"`
	Changes int       `json:"changes" yaml:"changes"`
	At      time.Time `gorm:"index" json:"at" yaml:"at"`
}

// Entry is a row of `bop history`: an audit or an event, newest first.
type Entry struct {
	At      time.Time `json:"at" yaml:"at"`
	Kind    string    `json:"kind" yaml:"kind"`
	Summary string    `json:"summary" yaml:"summary"`
}
