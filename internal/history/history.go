// Package history keeps a local SQLite log of audits and of apply, revert
// and auto runs. Callers treat every failure here as a warning.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/models"
)

// Store is an open history database.
type Store struct {
	db  *gorm.DB
	Now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	if err := db.AutoMigrate(&models.AuditRun{}, &models.Event{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &Store{db: db, Now: time.Now}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordAudit stores an audit result.
func (s *Store) RecordAudit(profile string, findings []audit.Finding, host hardware.HostSummary) error {
	encoded, err := json.Marshal(findings)
	if err != nil {
		return err
	}
	counts := audit.Counts(findings)
	run := models.AuditRun{
		Profile:  profile,
		Score:    audit.Score(findings),
		High:     counts[audit.High],
		Medium:   counts[audit.Medium],
		Low:      counts[audit.Low],
		Info:     counts[audit.Info],
		RanAt:    s.Now(),
		Findings: string(encoded),
		Hostname: host.Hostname,
		OS:       host.OS,
		Kernel:   host.Kernel,
		CPUModel: host.CPUModel,
		MemMB:    host.MemTotalMB,
	}
	return s.db.Create(&run).Error
}

// RecordEvent stores an apply, revert or auto outcome.
func (s *Store) RecordEvent(kind models.EventKind, outcome, detail string, changes int) error {
	ev := models.Event{Kind: kind, Outcome: outcome, Detail: detail, Changes: changes, At: s.Now()}
	return s.db.Create(&ev).Error
}

// Audits returns the newest audit runs first.
func (s *Store) Audits(limit int) ([]models.AuditRun, error) {
	var runs []models.AuditRun
	err := s.db.Order("ran_at desc, id desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// Findings decodes the findings stored with run.
func Findings(run models.AuditRun) ([]audit.Finding, error) {
	var fs []audit.Finding
	if run.Findings == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(run.Findings), &fs); err != nil {
		return nil, fmt.Errorf("decoding findings of audit %d: %w", run.ID, err)
	}
	return fs, nil
}

// Recent merges audits and events into at most limit entries, newest first.
func (s *Store) Recent(limit int) ([]models.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.Audits(limit)
	if err != nil {
		return nil, err
	}
	var events []models.Event
	if err := s.db.Order("at desc, id desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}

	entries := make([]models.Entry, 0, len(runs)+len(events))
	for _, r := range runs {
		entries = append(entries, models.Entry{
			At:      r.RanAt,
			Kind:    "audit",
			Summary: fmt.Sprintf("%s: score %d/100 (%d high, %d medium, %d low)", r.Profile, r.Score, r.High, r.Medium, r.Low),
		})
	}
	for _, e := range events {
		summary := e.Outcome
		if e.Detail != "" {
			summary += ": " + e.Detail
		}
		entries = append(entries, models.Entry{At: e.At, Kind: string(e.Kind), Summary: summary})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.After(entries[j].At) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Recorder wraps an optional Store so callers can log without nil checks.
// A nil or disabled Recorder drops everything.
type Recorder struct {
	Store *Store
}

// Audit records an audit, logging failures.
func (r Recorder) Audit(profile string, findings []audit.Finding, host hardware.HostSummary) {
	if r.Store == nil {
		return
	}
	if err := r.Store.RecordAudit(profile, findings, host); err != nil {
		log.Printf("[history] warning: recording audit: %v", err)
	}
}

// Event records an event, logging failures.
func (r Recorder) Event(kind models.EventKind, outcome, detail string, changes int) {
	if r.Store == nil {
		return
	}
	if err := r.Store.RecordEvent(kind, outcome, detail, changes); err != nil {
		log.Printf("[history] warning: recording %s event: %v", kind, err)
	}
}

// OpenRecorder opens path when enabled. A database that cannot be opened
// yields a no-op Recorder and a logged warning.
func OpenRecorder(path string, enabled bool) Recorder {
	if !enabled {
		return Recorder{}
	}
	s, err := Open(path)
	if err != nil {
		log.Printf("[history] warning: %v", err)
		return Recorder{}
	}
	return Recorder{Store: s}
}

// Close closes the underlying store, if any.
func (r Recorder) Close() {
	if r.Store != nil {
		r.Store.Close()
	}
}
