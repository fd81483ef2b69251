package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSetChannel(t *testing.T) {
	t.Parallel()

	SetChannel(2, true, true)
	require.InDelta(t, 1.0, testutil.ToFloat64(armed.WithLabelValues("2")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(alarmActive.WithLabelValues("2")), 0)

	SetChannel(2, false, false)
	require.InDelta(t, 0.0, testutil.ToFloat64(armed.WithLabelValues("2")), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(alarmActive.WithLabelValues("2")), 0)
}

func TestCounters(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(notifications.WithLabelValues(ResultDropped))
	RecordNotification(ResultDropped)
	require.InDelta(t, before+1, testutil.ToFloat64(notifications.WithLabelValues(ResultDropped)), 0)

	before = testutil.ToFloat64(persistFailures)
	RecordPersistFailure()
	require.InDelta(t, before+1, testutil.ToFloat64(persistFailures), 0)
}
