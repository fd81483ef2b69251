package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []Message
	started chan struct{}
	release chan struct{}
	err     error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(ctx context.Context, msg Message) error {
	if n.started != nil {
		select {
		case n.started <- struct{}{}:
		default:
		}
	}

	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, msg)

	return n.err
}

func (n *recordingNotifier) messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]Message(nil), n.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	values []string
	topics []string
	retain []bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic, value string, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.topics = append(p.topics, topic)
	p.values = append(p.values, value)
	p.retain = append(p.retain, retain)

	return nil
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	t.Parallel()

	notifier := new(recordingNotifier)
	publisher := new(recordingPublisher)

	d := NewDispatcher(notifier, publisher, DispatcherConfig{Topic: "tankguard/system/status"})
	d.Start(context.Background())

	d.Notify(Message{Text: "one"})
	d.PublishStatus("ARMED_1")
	d.Notify(Message{Text: "two", Silent: true})

	require.NoError(t, d.Close(context.Background()))

	msgs := notifier.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "one", msgs[0].Text)
	require.Equal(t, "two", msgs[1].Text)
	require.True(t, msgs[1].Silent)

	require.Equal(t, []string{"ARMED_1"}, publisher.values)
	require.Equal(t, []string{"tankguard/system/status"}, publisher.topics)
	require.Equal(t, []bool{true}, publisher.retain)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	d := NewDispatcher(notifier, nil, DispatcherConfig{QueueSize: 1})
	d.Start(context.Background())

	d.Notify(Message{Text: "in flight"})
	<-notifier.started

	d.Notify(Message{Text: "queued"})
	d.Notify(Message{Text: "dropped"})

	close(notifier.release)
	require.NoError(t, d.Close(context.Background()))

	msgs := notifier.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "in flight", msgs[0].Text)
	require.Equal(t, "queued", msgs[1].Text)
}

func TestDispatcher_CloseDeadline(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{release: make(chan struct{})}

	d := NewDispatcher(notifier, nil, DispatcherConfig{})
	d.Start(context.Background())
	d.Notify(Message{Text: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	// Enqueueing after close is a no-op.
	d.Notify(Message{Text: "late"})
	require.Empty(t, notifier.messages())
}

func TestDispatcher_FailedSendKeepsWorking(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{err: errors.New("boom")}

	d := NewDispatcher(notifier, nil, DispatcherConfig{})
	d.Start(context.Background())

	d.Notify(Message{Text: "a"})
	d.Notify(Message{Text: "b"})
	d.PublishStatus("ignored without publisher")

	require.NoError(t, d.Close(context.Background()))
	require.Len(t, notifier.messages(), 2)
}
