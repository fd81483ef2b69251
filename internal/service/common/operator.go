//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// DetectOperator gathers the user and host names for the audit trail.
// name overrides the detected user name when not empty.
func DetectOperator(name string) (door.Operator, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return door.Operator{}, fmt.Errorf("hostname: %w", err)
	}

	if name == "" {
		currentUser, err := user.Current()
		if err != nil {
			return door.Operator{}, fmt.Errorf("current user: %w", err)
		}

		name = currentUser.Username
	}

	return door.Operator{Name: name, Source: hostname}, nil
}
