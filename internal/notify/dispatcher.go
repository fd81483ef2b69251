package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/metrics"
)

// DefaultQueueSize is the number of pending jobs a Dispatcher buffers.
const DefaultQueueSize = 64

type job struct {
	msg     *Message
	status  string
	publish bool
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Topic receives status broadcasts.
	Topic string
	// RatePerSecond limits notifications; zero disables limiting.
	RatePerSecond float64
	// QueueSize defaults to DefaultQueueSize.
	QueueSize int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// Dispatcher delivers notifications and status broadcasts on a background
// worker. Enqueueing never blocks; jobs are dropped when the queue is full.
type Dispatcher struct {
	notifier  Notifier
	publisher Publisher
	topic     string
	timeout   time.Duration
	limiter   *rate.Limiter

	mu     sync.RWMutex
	closed bool
	queue  chan job

	done   chan struct{}
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher. A nil notifier logs messages;
// a nil publisher discards broadcasts.
func NewDispatcher(notifier Notifier, publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	if notifier == nil {
		notifier = LogNotifier{}
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Dispatcher{
		notifier:  notifier,
		publisher: publisher,
		topic:     cfg.Topic,
		timeout:   cfg.Timeout,
		limiter:   limiter,
		queue:     make(chan job, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Notify enqueues a notification.
func (d *Dispatcher) Notify(msg Message) {
	d.enqueue(job{msg: &msg})
}

// PublishStatus enqueues a retained status broadcast.
func (d *Dispatcher) PublishStatus(value string) {
	if d.publisher == nil {
		return
	}

	d.enqueue(job{status: value, publish: true})
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(j, "dispatcher closed")

		return
	}

	select {
	case d.queue <- j:
	default:
		d.drop(j, "queue full")
	}
}

func (d *Dispatcher) drop(j job, reason string) {
	if j.publish {
		metrics.RecordPublish(metrics.ResultDropped)
		logger.WarnKV(context.Background(), "Status broadcast dropped", "reason", reason, "value", j.status)

		return
	}

	metrics.RecordNotification(metrics.ResultDropped)
	logger.WarnKV(context.Background(), "Notification dropped", "reason", reason, "text", j.msg.Text)
}

// Start launches the delivery worker. The worker keeps its own context so
// that pending jobs can be drained after ctx is cancelled; Close stops it.
func (d *Dispatcher) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(logger.WithName(ctx, "dispatcher")))
	d.cancel = cancel

	go func() {
		defer close(d.done)

		for j := range d.queue {
			d.deliver(workerCtx, j)
		}
	}()
}

// Close stops accepting jobs and waits for pending ones until ctx is done,
// then abandons whatever is left.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if d.cancel == nil {
		return nil
	}

	defer d.cancel()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done

		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	if ctx.Err() != nil {
		d.drop(j, "shutting down")

		return
	}

	if j.publish {
		d.deliverStatus(ctx, j.status)

		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.drop(j, "rate limiter: "+err.Error())

		return
	}

	sendCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.notifier.Send(sendCtx, *j.msg); err != nil {
		metrics.RecordNotification(metrics.ResultFailed)
		logger.ErrorKV(ctx, "Notification failed", "notifier", d.notifier.Name(), "error", err)

		return
	}

	metrics.RecordNotification(metrics.ResultSent)
}

func (d *Dispatcher) deliverStatus(ctx context.Context, value string) {
	pubCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, d.topic, value, true); err != nil {
		metrics.RecordPublish(metrics.ResultFailed)
		logger.WarnKV(ctx, "Status broadcast failed", "topic", d.topic, "value", value, "error", err)

		return
	}

	metrics.RecordPublish(metrics.ResultSent)
	logger.DebugKV(ctx, "Status broadcast", "topic", d.topic, "value", value)
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d.timeout)
}
