package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)

	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done

	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	payload  string
	retained bool
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	err          error
	published    []message
	disconnected bool
	pending      bool
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, message{topic: topic, payload: payload.(string), retained: retained})

	if c.pending {
		return &fakeToken{done: make(chan struct{})}
	}

	return newFakeToken(c.err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnected = true
}

func (c *fakeClient) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]message(nil), c.published...)
}

func TestMQTT_Publish(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	p := NewWithClient(client, "tankguard/system/status")

	require.NoError(t, p.Publish(context.Background(), "tankguard/system/status", "ARMED_1", true))
	require.Equal(t, []message{{topic: "tankguard/system/status", payload: "ARMED_1", retained: true}}, client.messages())

	p.Close()
	require.True(t, client.disconnected)
}

func TestMQTT_PublishErrors(t *testing.T) {
	t.Parallel()

	offline := NewWithClient(&fakeClient{}, "t")
	require.ErrorIs(t, offline.Publish(context.Background(), "t", "v", true), errNotConnected)

	brokerErr := errors.New("broker refused")
	failing := NewWithClient(&fakeClient{connected: true, err: brokerErr}, "t")
	require.ErrorIs(t, failing.Publish(context.Background(), "t", "v", true), brokerErr)

	stuck := NewWithClient(&fakeClient{connected: true, pending: true}, "t")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, stuck.Publish(ctx, "t", "v", true), context.DeadlineExceeded)
}

func TestMQTT_AnnounceOnConnect(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	p := NewWithClient(client, "tankguard/system/status")

	// No status source yet.
	p.announce(context.Background())

	p.SetStatusFunc(func() string { return "DISARMED" })
	p.announce(context.Background())

	require.Eventually(t, func() bool {
		return len(client.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "DISARMED", client.messages()[0].payload)
	require.True(t, client.messages()[0].retained)
}
