package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/scheduler-api/pkg/event"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// ErrQueueFull is returned by Publish when the event had to be dropped.
var ErrQueueFull = stderrors.New("event queue is full")

// ErrStopped is returned by Publish once Start has begun shutting down.
var ErrStopped = stderrors.New("event dispatcher is stopped")

type DispatcherConfig struct {
	QueueSize     int
	RetryAttempts int
	RetryDelay    time.Duration
}

// Dispatcher hands events to a publisher on its own goroutine so callers
// never wait on the transport. When the queue is full new events are dropped.
type Dispatcher struct {
	publisher event.Publisher
	queue     chan event.Event
	config    DispatcherConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	done      chan struct{}

	// mu guards stopped. Publish holds it for reading while enqueueing so
	// nothing lands in the queue after the final drain.
	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(
	publisher event.Publisher,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	// Config validation instead of defaults
	if config.QueueSize <= 0 {
		panic("QueueSize must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		panic("RetryDelay must not be negative")
	}

	return &Dispatcher{
		publisher: publisher,
		queue:     make(chan event.Event, config.QueueSize),
		config:    config,
		logger:    logger,
		metrics:   metrics,
		done:      make(chan struct{}),
	}
}

// Publish enqueues e without blocking. Events published after shutdown
// began are dropped and counted.
func (d *Dispatcher) Publish(_ context.Context, e event.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.metrics.EventsDropped.WithLabelValues(string(e.Type)).Inc()
		d.logger.Warn("Dropping event published after shutdown", "event_type", string(e.Type))
		return ErrStopped
	}

	select {
	case d.queue <- e:
		d.metrics.EventQueueSize.Inc()
		return nil
	default:
		d.metrics.EventsDropped.WithLabelValues(string(e.Type)).Inc()
		return ErrQueueFull
	}
}

// Start delivers queued events until ctx is cancelled, then makes one
// delivery attempt for whatever is still queued.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	d.logger.Info("Starting event dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()

			d.drain()
			d.logger.Info("Shutting down event dispatcher")
			return
		case e := <-d.queue:
			d.metrics.EventQueueSize.Dec()
			d.deliver(ctx, e, d.config.RetryAttempts)
		}
	}
}

// Done is closed once Start has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case e := <-d.queue:
			d.metrics.EventQueueSize.Dec()
			d.deliver(ctx, e, 1)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e event.Event, attempts int) {
	timer := prometheus.NewTimer(d.metrics.EventPublishLatency)
	defer timer.ObserveDuration()

	tries := 0
	err := retry(ctx, attempts, d.config.RetryDelay, func() error {
		tries++
		if tries > 1 {
			d.metrics.EventRetries.WithLabelValues(string(e.Type)).Inc()
		}
		return d.publisher.Publish(ctx, e)
	})
	if err != nil {
		d.metrics.EventsFailed.WithLabelValues(string(e.Type)).Inc()
		d.logger.Error(err, "Failed to publish event", "event_type", string(e.Type), "attempts", tries)
		return
	}
	d.metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
}

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
		}
	}
	return err
}
