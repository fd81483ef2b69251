package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

func openTest(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	return j
}

func TestJournal_InsertRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTest(t)

	t.Cleanup(func() { require.NoError(t, j.Close(ctx)) })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Insert(ctx, door.Event{At: base, Channel: 1, Kind: door.EventArmed, Operator: "alice@ctl"}))
	require.NoError(t, j.Insert(ctx, door.Event{At: base.Add(time.Minute), Channel: 1, Kind: door.EventAlarm}))
	require.NoError(t, j.Insert(ctx, door.Event{At: base.Add(2 * time.Minute), Channel: 1, Kind: door.EventDisarmed,
		Operator: "bob@ctl", Detail: "alarm cleared"}))

	events, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, door.EventDisarmed, events[0].Kind)
	require.Equal(t, "bob@ctl", events[0].Operator)
	require.Equal(t, "alarm cleared", events[0].Detail)
	require.True(t, events[0].At.Equal(base.Add(2*time.Minute)))
	require.NotEmpty(t, events[0].ID)
	require.Equal(t, door.EventAlarm, events[1].Kind)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestJournal_RecordDrainsOnClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)

	j.Start(ctx)
	j.Record(door.Event{Kind: door.EventSystemStarted, Operator: "auto-arm@system"})
	j.Record(door.Event{Channel: 2, Kind: door.EventAutoArmed})
	require.NoError(t, j.Close(ctx))

	// Recording after close is ignored.
	j.Record(door.Event{Kind: door.EventAlarm})

	reopened, err := Open(ctx, path)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, reopened.Close(ctx)) })

	events, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	kinds := []door.EventKind{events[0].Kind, events[1].Kind}
	require.ElementsMatch(t, []door.EventKind{door.EventSystemStarted, door.EventAutoArmed}, kinds)
}
