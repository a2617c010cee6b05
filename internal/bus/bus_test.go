package bus

import (
	"sync"
	"testing"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []int
	b.Subscribe("t", func(p any) { got = append(got, p.(int)) })

	for i := 0; i < 100; i++ {
		b.Publish("t", i)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("event %d delivered out of order: got %d", i, v)
		}
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 events, got %d", len(got))
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	n := 0
	unsub := b.Subscribe("t", func(any) { n++ })

	b.Publish("t", "x")
	unsub()
	b.Publish("t", "x")
	unsub() // idempotent

	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if b.SubscriberCount("t") != 0 {
		t.Fatal("subscription leaked after unsubscribe")
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := New()
	delivered := false
	b.Subscribe("t", func(any) { panic("boom") })
	b.Subscribe("t", func(any) { delivered = true })

	b.Publish("t", "x")

	if !delivered {
		t.Fatal("second handler should still receive the event")
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	b := New()
	var a, c int
	b.Subscribe(MailboxTopic("chris"), func(any) { a++ })
	b.Subscribe(MailboxTopic("clio"), func(any) { c++ })

	b.Publish(MailboxTopic("chris"), "x")

	if a != 1 || c != 0 {
		t.Fatalf("cross-topic delivery: a=%d c=%d", a, c)
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe("t", func(any) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			for j := 0; j < 50; j++ {
				b.Publish("t", j)
			}
			unsub()
		}()
	}
	wg.Wait()

	if count == 0 {
		t.Fatal("expected some deliveries")
	}
}
