// Package bus provides the in-process pub/sub fabric connecting the
// mailbox, presence, broadcast, and swarm engines to live push streams.
//
// Delivery is best-effort and synchronous: Publish invokes every
// handler on the calling goroutine, in subscription order, after
// snapshotting the subscriber list under a short lock. Durable state
// lives in the database; subscribers that miss events catch up via
// sinceId / since cursors on reconnect.
package bus

import (
	"sync"

	"github.com/hivehq/hive/internal/pkg/logger"
)

// Topic names. Per-mailbox topics are derived with MailboxTopic.
const (
	TopicPresence = "presence"
	TopicBuzz     = "buzz"
	TopicSwarm    = "swarm"
)

// MailboxTopic returns the topic carrying events for one user's mailbox.
func MailboxTopic(user string) string {
	return "mailbox/" + user
}

// Handler receives published payloads. Handlers run on the publisher's
// goroutine and must not block on network I/O beyond a trivial write.
type Handler func(payload any)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is an in-process topic registry. The zero value is not usable;
// call New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]subscriber)}
}

// Subscribe registers a handler for a topic and returns the function
// that removes it. Unsubscribe is idempotent.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s.id == id {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		b.mu.Unlock()
	}
}

// Publish delivers payload to every current subscriber of topic. A
// panicking handler is logged and skipped; the rest still receive the
// event.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := b.topics[topic]
	snapshot := make([]subscriber, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		deliver(topic, s, payload)
	}
}

func deliver(topic string, s subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus handler panicked", "topic", topic, "panic", r)
		}
	}()
	s.handler(payload)
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
