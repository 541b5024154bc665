package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rootshell/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// collector counts handler invocations and signals each one.
type collector struct {
	mu     sync.Mutex
	events []domain.Event
	ch     chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 16)}
}

func (c *collector) handle(_ context.Context, e domain.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) waitN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d events, want %d", i, n)
		}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestPublishRoutesByType(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	opened := newCollector()
	closed := newCollector()
	b.Subscribe(domain.EventSessionOpened, opened.handle)
	b.Subscribe(domain.EventSessionClosed, closed.handle)

	b.Publish(context.Background(), domain.Event{Type: domain.EventSessionOpened})
	opened.waitN(t, 1)

	if got := closed.count(); got != 0 {
		t.Errorf("closed subscriber received %d events, want 0", got)
	}
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	all := newCollector()
	b.SubscribeAll(all.handle)

	b.Publish(context.Background(), domain.Event{Type: domain.EventCommandQueued})
	b.Publish(context.Background(), domain.Event{Type: domain.EventPermissionProbed})
	all.waitN(t, 2)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	c := newCollector()
	unsub := b.Subscribe(domain.EventCommandDone, c.handle)

	b.Publish(context.Background(), domain.Event{Type: domain.EventCommandDone})
	c.waitN(t, 1)

	unsub()
	b.Publish(context.Background(), domain.Event{Type: domain.EventCommandDone})

	// The second publish must not reach the handler; give any stray
	// goroutine a moment to prove the point.
	time.Sleep(50 * time.Millisecond)
	if got := c.count(); got != 1 {
		t.Errorf("received %d events after unsubscribe, want 1", got)
	}
}

func TestPanickingHandlerIsRecovered(t *testing.T) {
	b := newTestBus()

	c := newCollector()
	b.Subscribe(domain.EventCommandFailed, func(context.Context, domain.Event) {
		panic("handler blew up")
	})
	b.Subscribe(domain.EventCommandFailed, c.handle)

	b.Publish(context.Background(), domain.Event{Type: domain.EventCommandFailed})
	c.waitN(t, 1)

	// Close waits for the panicking goroutine too; a panic that escaped
	// recovery would fail the whole test binary.
	b.Close()
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := newTestBus()

	c := newCollector()
	b.SubscribeAll(c.handle)
	b.Close()

	b.Publish(context.Background(), domain.Event{Type: domain.EventSessionOpened})
	time.Sleep(50 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("received %d events after Close, want 0", got)
	}
}
