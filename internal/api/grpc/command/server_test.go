package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// fakeService records the last command it received.
type fakeService struct {
	lastID  door.ChannelID
	lastOp  door.Operator
	err     error
	snap    *door.Snapshot
	command string
}

func (f *fakeService) Arm(_ context.Context, id door.ChannelID, op door.Operator) (string, error) {
	f.command, f.lastID, f.lastOp = "arm", id, op

	return "armed", f.err
}

func (f *fakeService) Disarm(_ context.Context, id door.ChannelID, op door.Operator) (string, error) {
	f.command, f.lastID, f.lastOp = "disarm", id, op

	return "disarmed", f.err
}

func (f *fakeService) SuspendAutoArm(_ context.Context, op door.Operator) (string, error) {
	f.command, f.lastOp = "suspend", op

	return "suspended", f.err
}

func (f *fakeService) Status() *door.Snapshot { return f.snap }

var bob = door.Operator{Name: "bob", Source: "tank-host"}

func TestServer_ChannelCommands(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	s := NewServer(svc)

	reply, err := s.Arm(context.Background(), NewRequest(2, bob))
	require.NoError(t, err)
	require.Equal(t, "armed", reply.GetValue())
	require.Equal(t, "arm", svc.command)
	require.Equal(t, door.ChannelID(2), svc.lastID)
	require.Equal(t, bob, svc.lastOp)

	reply, err = s.Disarm(context.Background(), NewRequest(1, bob))
	require.NoError(t, err)
	require.Equal(t, "disarmed", reply.GetValue())
	require.Equal(t, door.ChannelID(1), svc.lastID)

	reply, err = s.SuspendAutoArm(context.Background(), NewRequest(0, bob))
	require.NoError(t, err)
	require.Equal(t, "suspended", reply.GetValue())
	require.Equal(t, bob, svc.lastOp)
}

func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService))

	_, err := s.Arm(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Arm(context.Background(), NewRequest(0, bob))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Disarm(context.Background(), NewRequest(3, bob))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Disarm(context.Background(), NewRequest(1, door.Operator{}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Arm(context.Background(), NewRequest(1, door.Operator{}))
	require.NoError(t, err)

	fractional := NewRequest(1, bob)
	fractional.Fields[fieldChannel] = structpb.NewNumberValue(1.5)

	_, err = s.Arm(context.Background(), fractional)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	textual := NewRequest(1, bob)
	textual.Fields[fieldChannel] = structpb.NewStringValue("1")

	_, err = s.Arm(context.Background(), textual)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SuspendAutoArm(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_InternalErrors(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeService{err: errors.New("disk on fire")})

	_, err := s.Arm(context.Background(), NewRequest(1, bob))
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = s.SuspendAutoArm(context.Background(), NewRequest(0, bob))
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	takenAt := time.Date(2024, 5, 1, 18, 31, 0, 0, time.UTC)
	since := takenAt.Add(-time.Hour)

	ch1 := door.NewChannel(1, "Fuel tank 1")
	ch1.DoorClosed = true
	ch1.ClosedSince = &since
	ch1.WarningSent = true

	ch2 := door.NewChannel(2, "Fuel tank 2")
	ch2.Armed = true
	ch2.AlarmActive = true
	ch2.LastAlarmNotifyAt = &takenAt

	snap := &door.Snapshot{
		Channels:            []*door.Channel{ch1, ch2},
		PendingAutoArmStart: &takenAt,
		RelayOn:             true,
		TakenAt:             takenAt,
	}

	s := NewServer(&fakeService{snap: snap})

	resp, err := s.GetStatus(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	channels := resp.GetFields()["channels"].GetListValue().GetValues()
	require.Len(t, channels, 2)
	require.Equal(t, string(door.StatusArmedAlarm), channels[1].GetStructValue().GetFields()["status"].GetStringValue())

	decoded, err := SnapshotFromStruct(resp)
	require.NoError(t, err)
	require.True(t, decoded.TakenAt.Equal(takenAt))
	require.True(t, decoded.RelayOn)
	require.Nil(t, decoded.SuspendedUntil)
	require.True(t, decoded.PendingAutoArmStart.Equal(takenAt))
	require.Equal(t, door.StatusUnarmedClosedWaiting, decoded.Channel(1).Status())
	require.True(t, decoded.Channel(1).ClosedSince.Equal(since))
	require.Equal(t, door.StatusArmedAlarm, decoded.Channel(2).Status())
	require.Equal(t, "Fuel tank 2", decoded.Channel(2).Name)
}

func TestSnapshotFromStruct_Malformed(t *testing.T) {
	t.Parallel()

	_, err := SnapshotFromStruct(&structpb.Struct{})
	require.ErrorIs(t, err, errMalformed)
}
