package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Marker is the clean-shutdown marker file. Its presence at startup means the
// previous run exited through the shutdown path.
type Marker struct {
	path string
}

// NewMarker returns a marker stored at path.
func NewMarker(path string) *Marker {
	return &Marker{path: filepath.Clean(path)}
}

// Write creates the marker. It is called last during shutdown.
func (m *Marker) Write() error {
	data := []byte("shutdown " + time.Now().UTC().Format(time.RFC3339) + "\n")

	if err := writeFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("write shutdown marker: %w", err)
	}

	return nil
}

// Consume reports whether the marker exists and removes it.
func (m *Marker) Consume() (bool, error) {
	err := os.Remove(m.path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove shutdown marker: %w", err)
	}
}
