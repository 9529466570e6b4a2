// Package audit evaluates rule functions over a hardware.View and scores
// the resulting findings. Rules are pure: they read the view and the root,
// never write.
package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/sysfs"
)

// Severity orders findings for display.
type Severity int

const (
	Info Severity = iota
	Low
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Info"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "info":
		*s = Info
	case "low":
		*s = Low
	case "medium":
		*s = Medium
	case "high":
		*s = High
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Finding is one observation about the machine.
type Finding struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Current     string   `json:"current" yaml:"current"`
	Recommended string   `json:"recommended" yaml:"recommended"`
	Impact      string   `json:"impact" yaml:"impact"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	// Weight is 0..10; higher weights pull the score down further.
	Weight int `json:"weight" yaml:"weight"`
}

func clampWeight(w int) int {
	return max(0, min(10, w))
}

// Rule inspects the machine and reports findings.
type Rule func(hw *hardware.View, root sysfs.Root) []Finding

// Registry is an ordered list of rules.
type Registry struct {
	rules []Rule
}

// NewRegistry returns a registry over rules.
func NewRegistry(rules ...Rule) *Registry {
	return &Registry{rules: rules}
}

// Add appends rules.
func (r *Registry) Add(rules ...Rule) { r.rules = append(r.rules, rules...) }

// Len is the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }

// Run evaluates every rule and returns the findings sorted by severity,
// highest first. Rule order does not affect the result beyond ties.
func (r *Registry) Run(hw *hardware.View, root sysfs.Root) []Finding {
	var out []Finding
	for _, rule := range r.rules {
		out = append(out, rule(hw, root)...)
	}
	Sort(out)
	return out
}

// Sort orders findings by severity descending, then category and
// description so the order is independent of rule registration.
func Sort(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Severity != fs[j].Severity {
			return fs[i].Severity > fs[j].Severity
		}
		if fs[i].Category != fs[j].Category {
			return fs[i].Category < fs[j].Category
		}
		return fs[i].Description < fs[j].Description
	})
}

// Score maps findings to 0..100: round(100 × (1 − Σweight / (10 × n))).
// No findings scores 100.
func Score(fs []Finding) int {
	if len(fs) == 0 {
		return 100
	}
	total := 0
	for _, f := range fs {
		total += clampWeight(f.Weight)
	}
	s := math.Round(100 * (1 - float64(total)/float64(10*len(fs))))
	return int(max(0, min(100, s)))
}

// Counts tallies findings per severity.
func Counts(fs []Finding) map[Severity]int {
	c := map[Severity]int{}
	for _, f := range fs {
		c[f.Severity]++
	}
	return c
}
