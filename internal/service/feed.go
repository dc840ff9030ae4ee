package service

import (
	"sync"
	"sync/atomic"
)

// Feed message types.
const (
	FeedSample   = "sample"
	FeedBoundary = "boundary"
	FeedCycle    = "cycle"
	FeedSession  = "session"
)

const defaultFeedBuffer = 256

// FeedMessage is what presentation clients receive on the live feed.
type FeedMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Feed fans session output out to any number of subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the message.
type Feed struct {
	buffer int

	mu   sync.RWMutex
	next uint64
	subs map[uint64]chan FeedMessage

	dropped atomic.Uint64
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	return &Feed{buffer: buffer, subs: make(map[uint64]chan FeedMessage)}
}

// Subscribe registers a new subscriber. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (f *Feed) Subscribe() (<-chan FeedMessage, func()) {
	ch := make(chan FeedMessage, f.buffer)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) Publish(msg FeedMessage) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- msg:
		default:
			f.dropped.Add(1)
		}
	}
}

func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped counts messages missed by slow subscribers.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }
