package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReader_Edges feeds a sequence of readings and checks the emitted edges.
func TestReader_Edges(t *testing.T) {
	t.Parallel()

	r := NewReader()

	_, ok := r.Last(1)
	require.False(t, ok)

	require.Equal(t, EdgeNone, r.Observe(1, true), "baseline")
	require.Equal(t, EdgeNone, r.Observe(1, true))
	require.Equal(t, EdgeOpened, r.Observe(1, false))
	require.Equal(t, EdgeNone, r.Observe(1, false))
	require.Equal(t, EdgeClosed, r.Observe(1, true))

	closed, ok := r.Last(1)
	require.True(t, ok)
	require.True(t, closed)
}

// TestReader_ChannelsIndependent ensures one channel's history does not leak into the other.
func TestReader_ChannelsIndependent(t *testing.T) {
	t.Parallel()

	r := NewReader()

	require.Equal(t, EdgeNone, r.Observe(1, true))
	require.Equal(t, EdgeNone, r.Observe(2, false))
	require.Equal(t, EdgeClosed, r.Observe(2, true))
	require.Equal(t, EdgeNone, r.Observe(1, true))
}

// TestReader_NoDwellFilter documents that a single noisy read yields two edges.
func TestReader_NoDwellFilter(t *testing.T) {
	t.Parallel()

	r := NewReader()

	r.Observe(2, true)
	require.Equal(t, EdgeOpened, r.Observe(2, false))
	require.Equal(t, EdgeClosed, r.Observe(2, true))
}

func TestReader_UnknownChannel(t *testing.T) {
	t.Parallel()

	r := NewReader()
	require.Equal(t, EdgeNone, r.Observe(7, true))
	require.Equal(t, "OPENED", EdgeOpened.String())
	require.Equal(t, "NONE", EdgeNone.String())
}
