package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const deliveryTimeout = 15 * time.Second

// Dispatcher queues notifications and delivers them to every sink from a
// fixed pool of workers. Delivery is fire-and-forget: failures are logged
// and counted, never returned to the producer.
type Dispatcher struct {
	sinks  []Sink
	config *Config
	logger *slog.Logger

	queue chan Notification
	// per-sink semaphores
	limits map[string]chan struct{}

	// Counters and lifecycle state
	mu        sync.Mutex
	closed    bool
	started   bool
	delivered int
	failed    int
	dropped   int

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Queued    int `json:"queued"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Workers   int `json:"workers"`
}

// New creates a dispatcher. It does not deliver until Start is called.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	limits := make(map[string]chan struct{}, len(sinks))
	for _, s := range sinks {
		if _, ok := limits[s.Name()]; !ok {
			limits[s.Name()] = make(chan struct{}, cfg.GetSinkLimit(s.Name()))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		sinks:  sinks,
		config: cfg,
		logger: logger,
		queue:  make(chan Notification, cfg.QueueSize),
		limits: limits,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started", "workers", d.config.Workers, "sinks", len(d.sinks))
}

// Stop stops accepting notifications, delivers what is already queued and
// waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Info("notification dispatcher stopped")
}

// Enqueue queues n for delivery without blocking. It reports false when
// the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(n Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.dropped++
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.dropped++
		d.logger.Warn("notification queue full, dropping",
			"recipient", n.Recipient, "action", n.Event.Action, "ticket", n.Event.TicketRef)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, n)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, n Notification) {
	sem := d.limits[s.Name()]
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(d.ctx, deliveryTimeout)
	defer cancel()

	err := s.Deliver(ctx, n)

	d.mu.Lock()
	if err != nil {
		d.failed++
	} else {
		d.delivered++
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("notification delivery failed",
			"sink", s.Name(), "recipient", n.Recipient, "error", err)
	}
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Queued:    len(d.queue),
		Delivered: d.delivered,
		Failed:    d.failed,
		Dropped:   d.dropped,
		Workers:   d.config.Workers,
	}
}
