// Package opener launches the desktop application registered for a file.
package opener

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Opener opens a finished artifact for the local user.
type Opener interface {
	Open(path string) error
}

// New returns the system opener when enabled, otherwise a no-op.
func New(enabled bool) Opener {
	if !enabled {
		return Noop{}
	}
	return System{GOOS: runtime.GOOS}
}

type Noop struct{}

func (Noop) Open(string) error { return nil }

// System starts the platform file handler without waiting for it to exit.
type System struct {
	GOOS string
}

func (s System) Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	name, args := Command(s.GOOS, abs)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Reap the child in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Command returns the launcher invocation for goos.
func Command(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}
