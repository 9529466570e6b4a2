package bootloader

import (
	"slices"
	"strings"

	"github.com/vesaa/bop/internal/errs"
)

// EntriesDir holds systemd-boot loader entries.
const EntriesDir = "boot/loader/entries"

// EditOptionsContent rewrites the first line starting with the token
// "options" at column 0. Lines other than that one, and the trailing
// newline, are preserved byte for byte.
func EditOptionsContent(content string, params []string, add bool) (string, error) {
	lines, nl := splitLines(content)
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "options" || !strings.HasPrefix(line, "options") {
			continue
		}
		tokens := fields[1:]
		if add {
			tokens = addTokens(tokens, params)
		} else {
			tokens = removeTokens(tokens, params)
		}
		if !slices.Equal(tokens, fields[1:]) {
			lines[i] = strings.Join(append([]string{"options"}, tokens...), " ")
		}
		return joinLines(lines, nl), nil
	}
	return "", errs.New(errs.Bootloader, "no 'options' line")
}

// systemdBootEntries lists the .conf files in the entries directory.
func (e *Editor) systemdBootEntries() ([]string, error) {
	names, err := e.Root.ListDir(EntriesDir)
	if err != nil {
		return nil, errs.Wrap(errs.Bootloader, err, "listing %s", e.Root.Path(EntriesDir))
	}
	var out []string
	for _, n := range names {
		if strings.HasSuffix(n, ".conf") {
			out = append(out, EntriesDir+"/"+n)
		}
	}
	if len(out) == 0 {
		return nil, errs.New(errs.Bootloader, "no loader entries in %s", e.Root.Path(EntriesDir))
	}
	return out, nil
}
