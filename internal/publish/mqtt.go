// Package publish broadcasts the system status over MQTT.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/logger"
)

const (
	qos              = 1
	reconnectBackoff = 5 * time.Second
	disconnectQuiet  = 250
)

var errNotConnected = errors.New("mqtt client is not connected")

// Client is the subset of the paho client the publisher needs.
type Client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// StatusFunc returns the value to broadcast after (re)connecting.
type StatusFunc func() string

// MQTT publishes retained status values. It reconnects on its own and
// republishes the current status every time the connection comes up.
type MQTT struct {
	client Client
	topic  string

	mu     sync.RWMutex
	status StatusFunc
}

// NewMQTT creates a publisher and starts connecting in the background.
func NewMQTT(ctx context.Context, cfg config.MQTT) *MQTT {
	ctx = logger.WithName(ctx, "mqtt")
	p := &MQTT{topic: cfg.Topic}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectBackoff).
		SetMaxReconnectInterval(time.Minute).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.InfoKV(ctx, "MQTT connected", "broker", cfg.Broker)
			p.announce(ctx)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	p.client = client

	// With connect retry enabled the token only completes once connected.
	client.Connect()

	return p
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

// SetStatusFunc sets the source of the on-connect broadcast.
func (p *MQTT) SetStatusFunc(fn StatusFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = fn
}

// Publish sends value to topic and waits for the broker acknowledgement.
func (p *MQTT) Publish(ctx context.Context, topic, value string, retain bool) error {
	if !p.client.IsConnectionOpen() {
		return errNotConnected
	}

	token := p.client.Publish(topic, qos, retain, value)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (p *MQTT) Close() {
	p.client.Disconnect(disconnectQuiet)
}

func (p *MQTT) announce(ctx context.Context) {
	p.mu.RLock()
	status := p.status
	p.mu.RUnlock()

	if status == nil {
		return
	}

	value := status()

	// The handler runs on the paho goroutine; do not block it.
	go func() {
		pubCtx, cancel := context.WithTimeout(ctx, reconnectBackoff)
		defer cancel()

		if err := p.Publish(pubCtx, p.topic, value, true); err != nil {
			logger.WarnKV(ctx, "Initial status broadcast failed", "error", err)
		}
	}()
}
