// Package registrar provides best-effort registration of minted identifiers
// with an external naming authority. Registration is decoupled from minting:
// the core publishes an event and moves on; delivery failures are logged and
// counted, never surfaced to the mint caller.
package registrar

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/biscicol/bcid/internal/metrics"
)

// Metadata describes the minted identifier for the naming authority.
type Metadata struct {
	Target  string // resolvable URL for the identifier
	What    string // title of the named thing
	Who     string // responsible party
	When    string // creation timestamp
	Profile string // metadata profile, e.g. "erc"
}

// Client registers identifiers with the external authority.
type Client interface {
	// Register creates or updates the identifier. A non-nil error is
	// transient from the caller's perspective; the core never retries.
	Register(ctx context.Context, identifier string, meta Metadata) error
}

// Event is one registration request published by a minter.
type Event struct {
	Identifier string
	Metadata   Metadata
}

// Dispatcher is the outbound registration queue. Minters enqueue events
// without blocking; a single worker drains the queue and calls the client.
type Dispatcher struct {
	client  Client
	queue   chan Event
	timeout time.Duration
	limiter *rate.Limiter

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewDispatcher creates a dispatcher over client with the given queue depth.
func NewDispatcher(client Client, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client:  client,
		queue:   make(chan Event, queueSize),
		timeout: timeout,
		// EZID asks clients to stay under a few requests per second.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. It returns immediately; the worker
// runs until Stop is called and the queue is drained.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Stop closes the queue and waits for the worker to drain it.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

// Enqueue publishes a registration event. It never blocks: when the queue is
// full the event is dropped, logged, and counted. Returns false on drop.
func (d *Dispatcher) Enqueue(ev Event) bool {
	select {
	case d.queue <- ev:
		metrics.RegistrationQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		log.Printf("registrar: queue full, dropping registration for %s", ev.Identifier)
		metrics.RegistrationsDropped.Inc()
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		metrics.RegistrationQueueDepth.Set(float64(len(d.queue)))
		if err := d.limiter.Wait(context.Background()); err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.client.Register(ctx, ev.Identifier, ev.Metadata)
		cancel()
		if err != nil {
			log.Printf("registrar: register %s: %v", ev.Identifier, err)
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	}
}
