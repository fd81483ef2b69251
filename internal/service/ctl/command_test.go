package ctl

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

type fakeClient struct {
	failures int
	failCode codes.Code
	calls    int
	snap     *door.Snapshot
}

func (f *fakeClient) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("call: %w", status.Error(f.failCode, "daemon down"))
	}

	return nil
}

func (f *fakeClient) Arm(_ context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}

	return fmt.Sprintf("armed %d by %s", int(id), op), nil
}

func (f *fakeClient) Disarm(_ context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}

	return fmt.Sprintf("disarmed %d by %s", int(id), op), nil
}

func (f *fakeClient) SuspendAutoArm(context.Context, door.Operator) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}

	return "suspended", nil
}

func (f *fakeClient) Status(context.Context) (*door.Snapshot, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}

	return f.snap, nil
}

var carol = door.Operator{Name: "carol", Source: "pump-house"}

func TestExecute_Actions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action Action
		want   string
	}{
		{ActionArm, "armed 2 by carol@pump-house\n"},
		{ActionDisarm, "disarmed 2 by carol@pump-house\n"},
		{ActionSuspend, "suspended\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			err := Execute(context.Background(), new(fakeClient), carol, &Options{
				Action:  tt.action,
				Channel: 2,
				Out:     &out,
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, out.String())
		})
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	t.Parallel()

	err := Execute(context.Background(), new(fakeClient), carol, &Options{Action: "explode", Out: new(bytes.Buffer)})
	require.ErrorIs(t, err, errUnknownAction)
}

func TestExecute_WaitRetriesUnavailable(t *testing.T) {
	t.Parallel()

	client := &fakeClient{failures: 1, failCode: codes.Unavailable}

	var out bytes.Buffer

	err := Execute(context.Background(), client, carol, &Options{Action: ActionArm, Channel: 1, Wait: true, Out: &out})
	require.NoError(t, err)
	require.Equal(t, 2, client.calls)
	require.Equal(t, "armed 1 by carol@pump-house\n", out.String())
}

func TestExecute_NoRetryWithoutWait(t *testing.T) {
	t.Parallel()

	client := &fakeClient{failures: 1, failCode: codes.Unavailable}

	err := Execute(context.Background(), client, carol, &Options{Action: ActionArm, Channel: 1, Out: new(bytes.Buffer)})
	require.Equal(t, codes.Unavailable, status.Code(err))
	require.Equal(t, 1, client.calls)

	client = &fakeClient{failures: 1, failCode: codes.InvalidArgument}

	err = Execute(context.Background(), client, carol, &Options{Action: ActionArm, Channel: 9, Wait: true, Out: new(bytes.Buffer)})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, 1, client.calls)
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	since := now.Add(-90 * time.Second)

	ch1 := door.NewChannel(1, "Fuel tank 1")
	ch1.DoorClosed = true
	ch1.ClosedSince = &since

	ch2 := door.NewChannel(2, "Fuel tank 2")
	ch2.Armed = true
	ch2.AlarmActive = true

	text := FormatStatus(&door.Snapshot{Channels: []*door.Channel{ch1, ch2}, RelayOn: true, TakenAt: now})

	require.Contains(t, text, "UNARMED_CLOSED_WAITING")
	require.Contains(t, text, "closed for 1m30s")
	require.Contains(t, text, "ARMED_ALARM")
	require.Contains(t, text, "relay ON, auto-arm active")
	require.Equal(t, "<nil status>", FormatStatus(nil))
}
