// Package askpass resolves certificate passwords from outside the process,
// the way git does: an askpass helper program when one is configured, or an
// interactive terminal prompt. Password storage itself is out of scope.
package askpass

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Environment variables consulted for the helper program, in order.
var askpassEnvVars = []string{"CERTPICK_ASKPASS", "GIT_ASKPASS", "SSH_ASKPASS"}

// Askpass obtains passwords via a helper command or terminal prompt.
// The zero value consults the standard environment variables.
type Askpass struct {
	// Command is the helper program to run. Empty means look up the
	// environment variables.
	Command string
}

// New returns an Askpass using the environment-configured helper.
func New() *Askpass { return &Askpass{} }

// GetPassword returns the password for the named certificate. It runs the
// askpass helper when configured, falling back to a terminal prompt when
// stdin is a TTY. Callers treat any error as "no password available".
func (a *Askpass) GetPassword(identifier string) (string, error) {
	prompt := fmt.Sprintf("Password for certificate '%s': ", identifier)

	if cmd := a.helperCommand(); cmd != "" {
		out, err := exec.Command(cmd, prompt).Output()
		if err != nil {
			return "", fmt.Errorf("askpass helper %s: %w", cmd, err)
		}
		return strings.TrimRight(string(out), "\r\n"), nil
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", errors.New("no askpass helper configured and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password from terminal: %w", err)
	}
	return string(password), nil
}

func (a *Askpass) helperCommand() string {
	if a.Command != "" {
		return a.Command
	}
	for _, name := range askpassEnvVars {
		if cmd := os.Getenv(name); cmd != "" {
			return cmd
		}
	}
	return ""
}
