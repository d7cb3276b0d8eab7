package registrar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClient records registrations and can be told to fail.
type fakeClient struct {
	mu    sync.Mutex
	calls []Event
	err   error
}

func (c *fakeClient) Register(ctx context.Context, identifier string, meta Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Event{Identifier: identifier, Metadata: meta})
	return c.err
}

func (c *fakeClient) registered() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.calls))
	copy(out, c.calls)
	return out
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	client := &fakeClient{}
	d := NewDispatcher(client, 16, time.Second)
	d.Start()

	for i := 0; i < 3; i++ {
		ok := d.Enqueue(Event{
			Identifier: "ark:/21547/B2x1",
			Metadata:   Metadata{Target: "https://example.org/1"},
		})
		if !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	// Stop blocks until the queue is drained.
	d.Stop()

	got := client.registered()
	if len(got) != 3 {
		t.Fatalf("registered = %d, want 3", len(got))
	}
	if got[0].Identifier != "ark:/21547/B2x1" {
		t.Errorf("identifier = %s", got[0].Identifier)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	// Never started, so the queue only holds its buffered capacity.
	d := NewDispatcher(&fakeClient{}, 2, time.Second)

	if !d.Enqueue(Event{Identifier: "a"}) {
		t.Fatal("first enqueue should fit")
	}
	if !d.Enqueue(Event{Identifier: "b"}) {
		t.Fatal("second enqueue should fit")
	}
	if d.Enqueue(Event{Identifier: "c"}) {
		t.Fatal("third enqueue should be dropped")
	}
}

func TestDispatcher_ContinuesAfterClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("ezid down")}
	d := NewDispatcher(client, 16, time.Second)
	d.Start()

	d.Enqueue(Event{Identifier: "ark:/21547/B2x1"})
	d.Enqueue(Event{Identifier: "ark:/21547/B2x2"})
	d.Stop()

	// Failures are logged and counted, never retried, and never stop the
	// worker from processing the rest of the queue.
	if got := client.registered(); len(got) != 2 {
		t.Fatalf("attempted = %d, want 2", len(got))
	}
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := NewDispatcher(&fakeClient{}, 4, time.Second)
	d.Start()
	d.Stop()
	d.Stop()
}
