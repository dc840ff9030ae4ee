package service

import (
	"testing"
)

func TestFeed_PublishReachesEverySubscriber(t *testing.T) {
	f := NewFeed(4)
	a, cancelA := f.Subscribe()
	b, cancelB := f.Subscribe()
	defer cancelA()
	defer cancelB()

	if f.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", f.Subscribers())
	}

	f.Publish(FeedMessage{Type: FeedSample, Data: 1})

	for name, ch := range map[string]<-chan FeedMessage{"a": a, "b": b} {
		select {
		case msg := <-ch:
			if msg.Type != FeedSample {
				t.Fatalf("%s: unexpected message %+v", name, msg)
			}
		default:
			t.Fatalf("%s: message not delivered", name)
		}
	}
}

func TestFeed_SlowSubscriberMissesMessages(t *testing.T) {
	f := NewFeed(2)
	ch, cancel := f.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		f.Publish(FeedMessage{Type: FeedSample, Data: i})
	}
	if len(ch) != 2 {
		t.Fatalf("expected buffer of 2 to be full, got %d", len(ch))
	}
	if f.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", f.Dropped())
	}
	if first := <-ch; first.Data != 0 {
		t.Fatalf("expected oldest message kept, got %+v", first)
	}
}

func TestFeed_CancelClosesAndUnregisters(t *testing.T) {
	f := NewFeed(0)
	ch, cancel := f.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if f.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", f.Subscribers())
	}
	// publishing with no subscribers is a no-op
	f.Publish(FeedMessage{Type: FeedSession})
}
