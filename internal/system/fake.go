package system

import (
	"errors"
	"os/exec"
	"strings"
)

// Fake is a scripted Runner. Commands are matched by their full command
// line, then by prefix; unmatched commands succeed with empty output.
type Fake struct {
	Calls     []string
	Responses map[string]FakeResult
	// Missing lists binaries that behave as if not installed.
	Missing []string
}

// FakeResult is the canned outcome of a command.
type FakeResult struct {
	Out string
	Err error
}

// ErrFake is the generic failure returned by Fail.
var ErrFake = errors.New("exit status 1")

// Fail is a FakeResult with a non-zero exit.
func Fail() FakeResult { return FakeResult{Err: ErrFake} }

// On registers a response for a command line or command-line prefix.
func (f *Fake) On(line string, res FakeResult) *Fake {
	if f.Responses == nil {
		f.Responses = map[string]FakeResult{}
	}
	f.Responses[line] = res
	return f
}

func (f *Fake) Run(c Command) (string, error) {
	line := c.String()
	f.Calls = append(f.Calls, line)
	for _, m := range f.Missing {
		if c.Name == m {
			return "", &exec.Error{Name: m, Err: exec.ErrNotFound}
		}
	}
	if res, ok := f.Responses[line]; ok {
		return res.Out, res.Err
	}
	best := ""
	for prefix := range f.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		res := f.Responses[best]
		return res.Out, res.Err
	}
	return "", nil
}

// Called reports whether a command line was run.
func (f *Fake) Called(line string) bool {
	for _, c := range f.Calls {
		if c == line {
			return true
		}
	}
	return false
}
