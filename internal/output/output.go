// Package output renders command results for the terminal and exports
// them as JSON or YAML.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format selects how results are written.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts text, json and yaml.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Text, JSON, YAML:
		return f, nil
	case "":
		return Text, nil
	}
	return "", fmt.Errorf("unknown format %q (text, json, yaml)", s)
}

// Printer writes results to W.
type Printer struct {
	W      io.Writer
	Format Format
	// Color enables lipgloss styling in text output.
	Color bool
}

// New returns a Printer on w. Color is on when w is a terminal.
func New(w io.Writer, f Format) *Printer {
	p := &Printer{W: w, Format: f}
	if file, ok := w.(*os.File); ok {
		p.Color = term.IsTerminal(int(file.Fd()))
	}
	return p
}

// Structured reports whether results are exported rather than rendered.
func (p *Printer) Structured() bool { return p.Format == JSON || p.Format == YAML }

// Export writes v as indented JSON or as YAML. YAML goes through the JSON
// encoding so both formats carry the same keys in the same order.
func (p *Printer) Export(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if p.Format != YAML {
		_, err = fmt.Fprintf(p.W, "%s\n", data)
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = p.W.Write(buf.Bytes())
	return err
}

// blockStyle drops the flow and quoting styles the JSON source carried.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// ── styles ───────────────────────────────────────────────────────────────────

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func (p *Printer) paint(st lipgloss.Style, s string) string {
	if !p.Color {
		return s
	}
	return st.Render(s)
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.W, format+"\n", args...)
}

func (p *Printer) mark(ok bool) string {
	if ok {
		return p.paint(okStyle, "✓")
	}
	return p.paint(badStyle, "✗")
}
