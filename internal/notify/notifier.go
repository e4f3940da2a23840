package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ChangeKind string

const (
	OrderCreated ChangeKind = "order_created"
	OrderUpdated ChangeKind = "order_updated"
	OrderDeleted ChangeKind = "order_deleted"
)

// Event describes a single change to the order ledger.
type Event struct {
	Kind    ChangeKind `json:"kind"`
	OrderID int64      `json:"order_id"`
	At      time.Time  `json:"at"`
}

// Subscription is an owned handle onto the orders-changed stream. The owner
// reads from C and calls Unsubscribe when done; there is no shared listener
// singleton.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Event

	notifier *Notifier
	ch       chan Event
	once     sync.Once
}

// Unsubscribe detaches the handle and closes its channel. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.notifier.remove(s.ID)
		close(s.ch)
	})
}

// Notifier fans ledger change events out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event and is expected
// to re-read the ledger on its next turn.
type Notifier struct {
	log *logrus.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func NewNotifier(log *logrus.Logger) *Notifier {
	return &Notifier{log: log, subs: make(map[uuid.UUID]*Subscription)}
}

const subscriberBuffer = 16

func (n *Notifier) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{
		ID:       uuid.New(),
		C:        ch,
		notifier: n,
		ch:       ch,
	}

	n.mu.Lock()
	n.subs[sub.ID] = sub
	n.mu.Unlock()

	return sub
}

func (n *Notifier) remove(id uuid.UUID) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// Publish delivers the event to every current subscriber without blocking.
func (n *Notifier) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subs {
		select {
		case sub.ch <- ev:
		default:
			n.log.WithFields(logrus.Fields{
				"component":    "notify",
				"subscription": sub.ID.String(),
				"kind":         string(ev.Kind),
			}).Warn("subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
