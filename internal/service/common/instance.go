//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process with the same
// executable name is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ProcessLister lists running processes.
type ProcessLister func() ([]ps.Process, error)

// EnsureSingleInstance fails when another process runs the same executable.
// Two daemons would fight over the GPIO lines and the relay.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return ensureSingleInstance(ps.Processes, filepath.Base(executable), os.Getpid())
}

func ensureSingleInstance(list ProcessLister, name string, self int) error {
	processes, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processes {
		if process.Pid() == self || process.Executable() != name {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, process.Pid())
	}

	return nil
}
