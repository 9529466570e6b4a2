// Package system wraps every external process bop invokes. Exit status is
// the only signal consumed; stdout is returned for the few commands whose
// output is parsed.
package system

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one process invocation.
type Command struct {
	Name string
	Args []string
	// Env entries are appended to the current environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Cmd builds a Command without extra environment.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Runner executes commands and returns their stdout.
type Runner interface {
	Run(c Command) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

func (Exec) Run(c Command) (string, error) {
	cmd := exec.Command(c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.String(), fmt.Errorf("%s: %w: %s", c, err, msg)
		}
		return stdout.String(), fmt.Errorf("%s: %w", c, err)
	}
	return stdout.String(), nil
}

// IsMissing reports whether err means the binary is not installed.
func IsMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
