package fanout

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
)

// Publisher delivers one event to one group: the local Hub, or the Redis
// relay when gateways run as separate processes.
type Publisher interface {
	Publish(ctx context.Context, group string, e Event) error
}

type job struct {
	group string
	event Event
}

type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
}

// Dispatcher moves events off the request path. Each group hashes to one
// worker so events for a group leave in the order they were queued.
type Dispatcher struct {
	pub     Publisher
	cfg     DispatcherConfig
	shards  []chan job
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(pub Publisher, cfg DispatcherConfig, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	d := &Dispatcher{pub: pub, cfg: cfg, logger: logger, metrics: m}
	d.shards = make([]chan job, cfg.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, cfg.QueueSize)
		d.wg.Add(1)
		go d.run(d.shards[i])
	}
	return d
}

// Notify queues e for group and returns immediately. A full queue or a
// closed dispatcher drops the event.
func (d *Dispatcher) Notify(group string, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(group, e, "dispatcher closed")
		return
	}
	select {
	case d.shard(group) <- job{group: group, event: e}:
		if d.metrics != nil {
			d.metrics.FanoutEnqueued.Inc()
		}
	default:
		d.drop(group, e, "queue full")
	}
}

func (d *Dispatcher) drop(group string, e Event, why string) {
	if d.metrics != nil {
		d.metrics.FanoutDropped.WithLabelValues("queue").Inc()
	}
	d.logger.Warn("fan-out event dropped",
		zap.String("group", group), zap.String("event", e.Type()), zap.String("reason", why))
}

func (d *Dispatcher) shard(group string) chan job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(group))
	return d.shards[h.Sum32()%uint32(len(d.shards))]
}

func (d *Dispatcher) run(queue chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.publish(j)
	}
}

func (d *Dispatcher) publish(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("fan-out publish panicked", zap.String("group", j.group), zap.Any("panic", r))
		}
	}()

	if err := d.pub.Publish(ctx, j.group, j.event); err != nil {
		if d.metrics != nil {
			d.metrics.FanoutFailed.Inc()
		}
		d.logger.Warn("fan-out publish failed",
			zap.String("group", j.group), zap.String("event", j.event.Type()), zap.Error(err))
		return
	}
	if d.metrics != nil {
		d.metrics.FanoutPublished.Inc()
	}
}

// Close stops intake and waits for queued events to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.shards {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
