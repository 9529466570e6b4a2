package history

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "var/lib/bop/history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns successive minutes from a fixed start.
func clock() func() time.Time {
	t := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	s.Now = clock()

	findings := []audit.Finding{
		{Severity: audit.High, Category: audit.CatCPU, Description: "EPP", Weight: 8},
		{Severity: audit.Low, Category: audit.CatAudio, Description: "power_save", Weight: 2},
	}
	host := hardware.HostSummary{Hostname: "fw16", OS: "fedora 40", Kernel: "6.8.0"}
	if err := s.RecordAudit("Framework Laptop 16", findings, host); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordEvent(models.EventApply, "applied", "12 changes", 12); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordEvent(models.EventRevert, "reverted", "", 12); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Kind != "revert" || entries[0].Summary != "reverted" {
		t.Errorf("newest = %+v", entries[0])
	}
	if entries[2].Kind != "audit" || !strings.Contains(entries[2].Summary, "score 50/100 (1 high, 0 medium, 1 low)") {
		t.Errorf("oldest = %+v", entries[2])
	}

	if got, _ := s.Recent(2); len(got) != 2 || got[1].Kind != "apply" {
		t.Errorf("limited = %+v", got)
	}

	runs, err := s.Audits(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("audits = %v, %v", runs, err)
	}
	if runs[0].Hostname != "fw16" || runs[0].Score != 50 {
		t.Errorf("run = %+v", runs[0])
	}
	decoded, err := Findings(runs[0])
	if err != nil || len(decoded) != 2 || decoded[0].Severity != audit.High {
		t.Errorf("findings = %+v, %v", decoded, err)
	}
}

func TestRecorderDisabled(t *testing.T) {
	r := OpenRecorder(filepath.Join(t.TempDir(), "h.db"), false)
	if r.Store != nil {
		t.Fatal("disabled recorder opened a store")
	}
	r.Event(models.EventAuto, "noop", "", 0)
	r.Audit("x", nil, hardware.HostSummary{})
	r.Close()
}
