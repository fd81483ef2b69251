package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	flags, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, door.Flags{}, flags)
}

// TestFileRepository_SaveLoad ensures Save followed by Load returns the same flags
// and that repeated saves leave no temporary files behind.
func TestFileRepository_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := NewFileRepository(filepath.Join(dir, "state.json"))

	savedAt := time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return savedAt.Add(250 * time.Millisecond) }

	want := door.Flags{Armed: [door.ChannelCount]bool{true, false}, AutoArmSuspended: true, SavedAt: savedAt}
	require.NoError(t, repo.Save(context.Background(), want))

	want.Armed[1] = true
	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "state.json", entries[0].Name())
}

// TestFileRepository_Malformed rejects records that miss a flag.
func TestFileRepository_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"armed1": true}`), 0o600))

	_, err := NewFileRepository(path).Load(context.Background())
	require.ErrorIs(t, err, errMalformed)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err = NewFileRepository(path).Load(context.Background())
	require.Error(t, err)
}

// TestFileRepository_LegacyRecord loads a record without a timestamp.
func TestFileRepository_LegacyRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"armed1": false, "armed2": true, "autoArmSuspended": true}`), 0o600))

	flags, err := NewFileRepository(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, door.Flags{Armed: [door.ChannelCount]bool{false, true}, AutoArmSuspended: true}, flags)
	require.True(t, flags.SavedAt.IsZero())
}

// TestMarker covers the clean-shutdown marker lifecycle.
func TestMarker(t *testing.T) {
	t.Parallel()

	m := NewMarker(filepath.Join(t.TempDir(), "shutdown.flag"))

	existed, err := m.Consume()
	require.NoError(t, err)
	require.False(t, existed)

	require.NoError(t, m.Write())

	existed, err = m.Consume()
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = m.Consume()
	require.NoError(t, err)
	require.False(t, existed)
}
