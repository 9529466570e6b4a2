package bootloader

import (
	"slices"
	"strings"

	"github.com/vesaa/bop/internal/errs"
)

// GrubDefaults is the GRUB settings file.
const GrubDefaults = "etc/default/grub"

const grubCmdlineKey = "GRUB_CMDLINE_LINUX_DEFAULT="

// EditGrubContent rewrites the GRUB_CMDLINE_LINUX_DEFAULT assignment. The
// quote character is kept (double quotes are used when there were none),
// as is anything after the closing quote. GRUB_CMDLINE_LINUX and every
// other line are untouched.
func EditGrubContent(content string, params []string, add bool) (string, error) {
	lines, nl := splitLines(content)
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, grubCmdlineKey) {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		value := trimmed[len(grubCmdlineKey):]

		quote, inner, rest := splitQuoted(value)
		tokens := strings.Fields(inner)
		var edited []string
		if add {
			edited = addTokens(tokens, params)
		} else {
			edited = removeTokens(tokens, params)
		}
		if slices.Equal(edited, tokens) {
			return content, nil
		}
		if quote == "" {
			quote = `"`
		}
		lines[i] = indent + grubCmdlineKey + quote + strings.Join(edited, " ") + quote + rest
		return joinLines(lines, nl), nil
	}
	return "", errs.New(errs.Bootloader, "no GRUB_CMDLINE_LINUX_DEFAULT line in %s", GrubDefaults)
}

// splitQuoted separates a shell-style value into its quote character, the
// quoted text, and whatever follows the closing quote.
func splitQuoted(value string) (quote, inner, rest string) {
	if value == "" {
		return "", "", ""
	}
	if q := value[:1]; q == `"` || q == "'" {
		body := value[1:]
		if end := strings.Index(body, q); end >= 0 {
			return q, body[:end], body[end+1:]
		}
		return q, body, ""
	}
	// Unquoted: the value runs to the first whitespace or comment.
	end := strings.IndexAny(value, " \t#")
	if end < 0 {
		return "", value, ""
	}
	return "", value[:end], value[end:]
}

// grubOutput picks the grub.cfg path grub-mkconfig should write.
func (e *Editor) grubOutput() string {
	for _, rel := range []string{"boot/grub", "boot/grub2"} {
		if e.Root.IsDir(rel) {
			return e.Root.Path(rel + "/grub.cfg")
		}
	}
	return e.Root.Path("boot/grub/grub.cfg")
}
