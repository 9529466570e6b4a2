package apply

import (
	"fmt"
	"strings"

	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/plan"
)

// UnitName is the persistence unit that replays sysfs writes at boot.
const UnitName = "bop-powersave.service"

// UnitContent renders the oneshot unit for p's sysfs writes.
func UnitContent(hw *hardware.View, p *plan.Plan) string {
	var b strings.Builder
	b.WriteString("# Managed by bop. Removed by `bop revert`.\n")
	b.WriteString("[Unit]\n")
	desc := "bop power optimizations"
	if hw != nil && hw.DMI.ProductName != "" {
		desc += " for " + hw.DMI.ProductName
	}
	fmt.Fprintf(&b, "Description=%s\n", desc)
	b.WriteString("After=multi-user.target\n\n")
	b.WriteString("[Service]\n")
	b.WriteString("Type=oneshot\n")
	b.WriteString("RemainAfterExit=yes\n")
	for _, w := range p.SysfsWrites {
		fmt.Fprintf(&b, "ExecStart=/bin/sh -c 'echo %s > %s'\n", w.Value, w.Path)
	}
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}
