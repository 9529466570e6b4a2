package bootloader

import (
	"slices"
	"strings"
)

// ParamKey returns the part of a kernel parameter before the first '='.
func ParamKey(param string) string {
	key, _, _ := strings.Cut(param, "=")
	return key
}

// addTokens applies each key=value to tokens: a verbatim match is left
// alone, a token with the same key is replaced in place, otherwise the
// parameter is appended.
func addTokens(tokens, params []string) []string {
	out := slices.Clone(tokens)
	for _, p := range params {
		if slices.Contains(out, p) {
			continue
		}
		key := ParamKey(p)
		if i := slices.IndexFunc(out, func(t string) bool { return ParamKey(t) == key }); i >= 0 {
			out[i] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// removeTokens drops every token whose key matches one of params' keys.
func removeTokens(tokens, params []string) []string {
	keys := make(map[string]bool, len(params))
	for _, p := range params {
		keys[ParamKey(p)] = true
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !keys[ParamKey(t)] {
			out = append(out, t)
		}
	}
	return out
}

// splitLines splits content into lines, reporting whether it ended with a
// newline so the caller can put it back.
func splitLines(content string) (lines []string, trailingNewline bool) {
	trailingNewline = strings.HasSuffix(content, "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailingNewline
}

func joinLines(lines []string, trailingNewline bool) string {
	s := strings.Join(lines, "\n")
	if trailingNewline {
		s += "\n"
	}
	return s
}
