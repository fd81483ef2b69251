// Package notify delivers operator notifications and status broadcasts.
//
// Monitor code never talks to the network directly: it enqueues on a
// Dispatcher, which delivers in the background with rate limiting.
package notify

import (
	"context"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
)

// Message is one operator notification.
type Message struct {
	// Text is the message body.
	Text string
	// Channel selects the camera snapshot; zero means the default camera.
	Channel door.ChannelID
	// Silent messages are delivered without sound and are not retried.
	Silent bool
}

// Notifier delivers a message to operators.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Publisher broadcasts a value on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, value string, retain bool) error
}

// LogNotifier writes notifications to the process log.
// It is used when no chat transport is configured.
type LogNotifier struct{}

// Name implements Notifier.
func (LogNotifier) Name() string { return "log" }

// Send implements Notifier.
func (LogNotifier) Send(ctx context.Context, msg Message) error {
	logger.InfoKV(ctx, "Notification", "channel", int(msg.Channel), "silent", msg.Silent, "text", msg.Text)

	return nil
}
