// Package journal is the persisted record of everything an apply changed.
// It is the single source of truth for revert and status: grown only
// during apply, shrunk only as revert steps succeed, deleted when empty.
package journal

import (
	"slices"
	"time"
)

// SysfsChange is one runtime value bop overwrote.
type SysfsChange struct {
	Path          string `json:"path" yaml:"path"`
	OriginalValue string `json:"original_value" yaml:"original_value"`
	NewValue      string `json:"new_value" yaml:"new_value"`
}

// Backup is the byte-exact content of a boot config file before bop first
// modified it.
type Backup struct {
	Path            string `json:"path" yaml:"path"`
	OriginalContent string `json:"original_content" yaml:"original_content"`
}

// Journal is the on-disk apply record.
type Journal struct {
	Timestamp            string        `json:"timestamp" yaml:"timestamp"`
	SysfsChanges         []SysfsChange `json:"sysfs_changes" yaml:"sysfs_changes"`
	KernelParamsAdded    []string      `json:"kernel_params_added" yaml:"kernel_params_added"`
	KernelParamBackups   []Backup      `json:"kernel_param_backups" yaml:"kernel_param_backups"`
	ServicesDisabled     []string      `json:"services_disabled" yaml:"services_disabled"`
	SystemdUnitsCreated  []string      `json:"systemd_units_created" yaml:"systemd_units_created"`
	ModprobeFilesCreated []string      `json:"modprobe_files_created" yaml:"modprobe_files_created"`
	ACPIWakeupToggled    []string      `json:"acpi_wakeup_toggled" yaml:"acpi_wakeup_toggled"`
	BrightnessOriginal   *uint64       `json:"brightness_original,omitempty" yaml:"brightness_original,omitempty"`
}

// New returns an empty journal stamped with now.
func New(now time.Time) *Journal {
	j := &Journal{Timestamp: now.Format(time.RFC3339)}
	j.normalize()
	return j
}

// normalize replaces nil vectors so the file always carries every key.
func (j *Journal) normalize() {
	if j.SysfsChanges == nil {
		j.SysfsChanges = []SysfsChange{}
	}
	if j.KernelParamBackups == nil {
		j.KernelParamBackups = []Backup{}
	}
	for _, v := range []*[]string{&j.KernelParamsAdded, &j.ServicesDisabled, &j.SystemdUnitsCreated, &j.ModprobeFilesCreated, &j.ACPIWakeupToggled} {
		if *v == nil {
			*v = []string{}
		}
	}
}

// Empty reports a journal with no outstanding work.
func (j *Journal) Empty() bool {
	return j.Entries() == 0
}

// Entries counts recorded changes. Backups are not counted on their own;
// they travel with kernel_params_added.
func (j *Journal) Entries() int {
	n := len(j.SysfsChanges) + len(j.KernelParamsAdded) + len(j.ServicesDisabled) +
		len(j.SystemdUnitsCreated) + len(j.ModprobeFilesCreated) + len(j.ACPIWakeupToggled)
	if len(j.KernelParamsAdded) == 0 {
		n += len(j.KernelParamBackups)
	}
	if j.BrightnessOriginal != nil {
		n++
	}
	return n
}

// RecordSysfs appends a change. A path already recorded keeps its earliest
// original value and takes the new target.
func (j *Journal) RecordSysfs(path, original, value string) {
	for i := range j.SysfsChanges {
		if j.SysfsChanges[i].Path == path {
			j.SysfsChanges[i].NewValue = value
			return
		}
	}
	j.SysfsChanges = append(j.SysfsChanges, SysfsChange{Path: path, OriginalValue: original, NewValue: value})
}

// RecordWakeup notes a toggled wake source once.
func (j *Journal) RecordWakeup(device string) { j.ACPIWakeupToggled = addUnique(j.ACPIWakeupToggled, device) }

// RecordService notes a disabled service once.
func (j *Journal) RecordService(name string) { j.ServicesDisabled = addUnique(j.ServicesDisabled, name) }

// RecordUnit notes a generated unit file once.
func (j *Journal) RecordUnit(path string) { j.SystemdUnitsCreated = addUnique(j.SystemdUnitsCreated, path) }

// RecordModprobe notes a created modprobe file once.
func (j *Journal) RecordModprobe(path string) {
	j.ModprobeFilesCreated = addUnique(j.ModprobeFilesCreated, path)
}

// RecordKernelParams adds params to kernel_params_added.
func (j *Journal) RecordKernelParams(params []string) {
	for _, p := range params {
		j.KernelParamsAdded = addUnique(j.KernelParamsAdded, p)
	}
}

// MergeBackups folds fresh backups in: prior entries for untouched paths
// survive, entries for paths touched again are replaced.
func (j *Journal) MergeBackups(fresh []Backup) {
	j.KernelParamBackups = MergeBackups(j.KernelParamBackups, fresh)
}

// MergeBackups returns prior entries whose path is not in fresh, followed
// by fresh.
func MergeBackups(prior, fresh []Backup) []Backup {
	out := make([]Backup, 0, len(prior)+len(fresh))
	for _, p := range prior {
		if !slices.ContainsFunc(fresh, func(b Backup) bool { return b.Path == p.Path }) {
			out = append(out, p)
		}
	}
	return append(out, fresh...)
}

// Clone returns a deep copy.
func (j *Journal) Clone() *Journal {
	c := *j
	c.SysfsChanges = slices.Clone(j.SysfsChanges)
	c.KernelParamsAdded = slices.Clone(j.KernelParamsAdded)
	c.KernelParamBackups = slices.Clone(j.KernelParamBackups)
	c.ServicesDisabled = slices.Clone(j.ServicesDisabled)
	c.SystemdUnitsCreated = slices.Clone(j.SystemdUnitsCreated)
	c.ModprobeFilesCreated = slices.Clone(j.ModprobeFilesCreated)
	c.ACPIWakeupToggled = slices.Clone(j.ACPIWakeupToggled)
	if j.BrightnessOriginal != nil {
		v := *j.BrightnessOriginal
		c.BrightnessOriginal = &v
	}
	c.normalize()
	return &c
}

func addUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
