package command

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Request and snapshot field names.
const (
	fieldChannel  = "channel"
	fieldOperator = "operator"
	fieldSource   = "source"
)

var (
	errChannelRequired = errors.New("channel is required")
	errMalformed       = errors.New("malformed status snapshot")
)

// NewRequest builds a command request. Channel zero omits the channel field.
func NewRequest(id door.ChannelID, op door.Operator) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldOperator: structpb.NewStringValue(op.Name),
		fieldSource:   structpb.NewStringValue(op.Source),
	}

	if id != 0 {
		fields[fieldChannel] = structpb.NewNumberValue(float64(id))
	}

	return &structpb.Struct{Fields: fields}
}

func parseOperator(req *structpb.Struct) door.Operator {
	return door.Operator{
		Name:   req.GetFields()[fieldOperator].GetStringValue(),
		Source: req.GetFields()[fieldSource].GetStringValue(),
	}
}

func parseChannel(req *structpb.Struct) (door.ChannelID, error) {
	value, ok := req.GetFields()[fieldChannel]
	if !ok {
		return 0, errChannelRequired
	}

	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("channel must be a number: %w", door.ErrUnknownChannel)
	}

	id := door.ChannelID(int(number.NumberValue))
	if float64(id) != number.NumberValue {
		return 0, fmt.Errorf("channel must be an integer: %w", door.ErrUnknownChannel)
	}

	if err := id.Validate(); err != nil {
		return 0, err
	}

	return id, nil
}

// SnapshotToStruct encodes a status snapshot.
func SnapshotToStruct(snap *door.Snapshot) (*structpb.Struct, error) {
	channels := make([]any, 0, len(snap.Channels))

	for _, ch := range snap.Channels {
		channels = append(channels, map[string]any{
			"id":                int(ch.ID),
			"name":              ch.Name,
			"status":            string(ch.Status()),
			"armed":             ch.Armed,
			"alarmActive":       ch.AlarmActive,
			"doorClosed":        ch.DoorClosed,
			"closedSince":       formatTime(ch.ClosedSince),
			"warningSent":       ch.WarningSent,
			"lastAlarmNotifyAt": formatTime(ch.LastAlarmNotifyAt),
		})
	}

	return structpb.NewStruct(map[string]any{
		"takenAt":             snap.TakenAt.Format(time.RFC3339Nano),
		"autoArmSuspended":    snap.AutoArmSuspended,
		"suspendedUntil":      formatTime(snap.SuspendedUntil),
		"pendingAutoArmStart": formatTime(snap.PendingAutoArmStart),
		"relayOn":             snap.RelayOn,
		"channels":            channels,
	})
}

// SnapshotFromStruct decodes a status snapshot.
func SnapshotFromStruct(s *structpb.Struct) (*door.Snapshot, error) {
	fields := s.GetFields()

	takenAt, err := parseTime(fields["takenAt"].GetStringValue())
	if err != nil || takenAt == nil {
		return nil, fmt.Errorf("%w: takenAt", errMalformed)
	}

	snap := &door.Snapshot{
		TakenAt:          *takenAt,
		AutoArmSuspended: fields["autoArmSuspended"].GetBoolValue(),
		RelayOn:          fields["relayOn"].GetBoolValue(),
	}

	if snap.SuspendedUntil, err = parseTime(fields["suspendedUntil"].GetStringValue()); err != nil {
		return nil, err
	}

	if snap.PendingAutoArmStart, err = parseTime(fields["pendingAutoArmStart"].GetStringValue()); err != nil {
		return nil, err
	}

	for _, item := range fields["channels"].GetListValue().GetValues() {
		chFields := item.GetStructValue().GetFields()

		ch := &door.Channel{
			ID:          door.ChannelID(int(chFields["id"].GetNumberValue())),
			Name:        chFields["name"].GetStringValue(),
			Armed:       chFields["armed"].GetBoolValue(),
			AlarmActive: chFields["alarmActive"].GetBoolValue(),
			DoorClosed:  chFields["doorClosed"].GetBoolValue(),
			WarningSent: chFields["warningSent"].GetBoolValue(),
		}

		if err = ch.ID.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformed, err)
		}

		if ch.ClosedSince, err = parseTime(chFields["closedSince"].GetStringValue()); err != nil {
			return nil, err
		}

		if ch.LastAlarmNotifyAt, err = parseTime(chFields["lastAlarmNotifyAt"].GetStringValue()); err != nil {
			return nil, err
		}

		snap.Channels = append(snap.Channels, ch)
	}

	return snap, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // Absent timestamps are nil.
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}

	return &t, nil
}
