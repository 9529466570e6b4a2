package hardware

import "math"

const powerSupplyBase = "sys/class/power_supply/"

// Battery holds the raw power_supply fields of the first battery. Energy
// fields are µWh/µW, charge fields µAh/µA, voltage µV. Nil means the kernel
// did not expose the field.
type Battery struct {
	Present          bool    `json:"present"`
	Name             string  `json:"name,omitempty"`
	Status           string  `json:"status,omitempty"`
	Capacity         *uint64 `json:"capacity,omitempty"`
	EnergyNow        *uint64 `json:"energy_now,omitempty"`
	EnergyFull       *uint64 `json:"energy_full,omitempty"`
	EnergyFullDesign *uint64 `json:"energy_full_design,omitempty"`
	ChargeNow        *uint64 `json:"charge_now,omitempty"`
	ChargeFull       *uint64 `json:"charge_full,omitempty"`
	ChargeFullDesign *uint64 `json:"charge_full_design,omitempty"`
	PowerNow         *uint64 `json:"power_now,omitempty"`
	CurrentNow       *uint64 `json:"current_now,omitempty"`
	VoltageNow       *uint64 `json:"voltage_now,omitempty"`
	CycleCount       *uint64 `json:"cycle_count,omitempty"`
}

// AC is the first mains power supply.
type AC struct {
	Found  bool   `json:"found"`
	Name   string `json:"name,omitempty"`
	Online bool   `json:"online"`
}

// OnAC reports a present and online adapter.
func (a AC) OnAC() bool { return a.Found && a.Online }

// OnBattery reports a present adapter that is offline.
func (a AC) OnBattery() bool { return a.Found && !a.Online }

func detectBattery(r *reader) Battery {
	var b Battery
	for _, name := range r.list(powerSupplyBase) {
		if len(name) < 3 || name[:3] != "BAT" {
			continue
		}
		base := powerSupplyBase + name + "/"
		if r.str(base+"type") != "Battery" {
			continue
		}
		b.Name = name
		b.Present = r.str(base+"present") == "1"
		b.Status = r.str(base + "status")
		b.Capacity = r.u64(base + "capacity")
		b.EnergyNow = r.u64(base + "energy_now")
		b.EnergyFull = r.u64(base + "energy_full")
		b.EnergyFullDesign = r.u64(base + "energy_full_design")
		b.ChargeNow = r.u64(base + "charge_now")
		b.ChargeFull = r.u64(base + "charge_full")
		b.ChargeFullDesign = r.u64(base + "charge_full_design")
		b.PowerNow = r.u64(base + "power_now")
		b.CurrentNow = r.u64(base + "current_now")
		b.VoltageNow = r.u64(base + "voltage_now")
		b.CycleCount = r.u64(base + "cycle_count")
		break
	}
	return b
}

func detectAC(r *reader) AC {
	var a AC
	for _, name := range r.list(powerSupplyBase) {
		base := powerSupplyBase + name + "/"
		if r.str(base+"type") != "Mains" {
			continue
		}
		a.Found = true
		a.Name = name
		a.Online = r.str(base+"online") == "1"
		break
	}
	return a
}

// HealthPercent is full capacity over design capacity, using energy fields
// when both are present and charge fields otherwise.
func (b Battery) HealthPercent() (float64, bool) {
	if full, design, ok := pair(b.EnergyFull, b.EnergyFullDesign); ok {
		return full / design * 100, true
	}
	if full, design, ok := pair(b.ChargeFull, b.ChargeFullDesign); ok {
		return full / design * 100, true
	}
	return 0, false
}

// PowerWatts is the instantaneous draw.
func (b Battery) PowerWatts() (float64, bool) {
	if b.PowerNow != nil {
		return float64(*b.PowerNow) / 1e6, true
	}
	return b.fromCharge(b.CurrentNow)
}

// EnergyWh is the remaining energy.
func (b Battery) EnergyWh() (float64, bool) {
	if b.EnergyNow != nil {
		return float64(*b.EnergyNow) / 1e6, true
	}
	return b.fromCharge(b.ChargeNow)
}

// UsableCapacityWh is the current full-charge capacity.
func (b Battery) UsableCapacityWh() (float64, bool) {
	if b.EnergyFull != nil {
		return float64(*b.EnergyFull) / 1e6, true
	}
	return b.fromCharge(b.ChargeFull)
}

// fromCharge converts a µA or µAh field to W or Wh using voltage_now.
func (b Battery) fromCharge(field *uint64) (float64, bool) {
	if field == nil || b.VoltageNow == nil {
		return 0, false
	}
	return float64(*field) * float64(*b.VoltageNow) / 1e12, true
}

func pair(a, b *uint64) (float64, float64, bool) {
	if a == nil || b == nil || *b == 0 {
		return 0, 0, false
	}
	return float64(*a), float64(*b), true
}

// Round1 rounds to one decimal for display.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }
