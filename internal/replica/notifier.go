package replica

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Update describes a state entry observed on the feed. Applied is false when
// the entry was filtered out (no active bento, other bento, undecodable).
type Update struct {
	RootID      string `json:"root_id"`
	EntryID     string `json:"entry_id"`
	BentoUUID   string `json:"bento_uuid"`
	SequenceKey int64  `json:"sequence_key"`
	Applied     bool   `json:"applied"`
}

// Listener receives state change notifications.
type Listener interface {
	OnStateUpdated(Update)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Update)

// OnStateUpdated calls f(u).
func (f ListenerFunc) OnStateUpdated(u Update) { f(u) }

// ListenerID identifies a subscription.
type ListenerID uint64

// Notifier fans state change notifications out to listeners.
//
// Concurrency model: NotifyAll only enqueues and never blocks. A single
// dispatcher goroutine drains the queue and calls listeners one after
// another, so a listener never runs concurrently with itself or with the
// feed's delivery goroutine. When the queue is full the notification is
// dropped; a refresh is already pending.
type Notifier struct {
	log *slog.Logger

	mu        sync.Mutex
	listeners map[ListenerID]Listener
	nextID    ListenerID

	queue   chan Update
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewNotifier starts a notifier with the given queue size.
func NewNotifier(queueSize int, logger *slog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Notifier{
		log:       logger,
		listeners: make(map[ListenerID]Listener),
		queue:     make(chan Update, queueSize),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.stopped)

	for {
		select {
		case <-n.stopCh:
			return
		case u := <-n.queue:
			for _, l := range n.snapshot() {
				n.deliver(l, u)
			}
		}
	}
}

func (n *Notifier) snapshot() []Listener {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]ListenerID, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = n.listeners[id]
	}
	return out
}

func (n *Notifier) deliver(l Listener, u Update) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("state listener panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	l.OnStateUpdated(u)
}

// Subscribe registers a listener. It may be called from any goroutine,
// listeners included.
func (n *Notifier) Subscribe(l Listener) ListenerID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.listeners[n.nextID] = l
	return n.nextID
}

// Unsubscribe removes a listener. A notification already being dispatched may
// still reach it.
func (n *Notifier) Unsubscribe(id ListenerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, id)
}

// ListenerCount returns the number of registered listeners.
func (n *Notifier) ListenerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// NotifyAll queues u for every listener. Safe to call from any goroutine.
func (n *Notifier) NotifyAll(u Update) {
	if n.closed.Load() {
		return
	}
	select {
	case n.queue <- u:
	default:
		n.dropped.Add(1)
	}
}

// Dropped returns how many notifications were coalesced because the queue was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close stops the dispatcher. Queued notifications are discarded.
func (n *Notifier) Close() {
	if n.closed.CompareAndSwap(false, true) {
		close(n.stopCh)
	}
	<-n.stopped
}
