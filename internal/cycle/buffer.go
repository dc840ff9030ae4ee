// Package cycle accumulates converted samples between two cycle boundaries.
package cycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mold_monitor"
)

var (
	ErrBufferClosed     = errors.New("cycle: append to closed buffer")
	ErrSampleOutOfOrder = errors.New("cycle: sample out of order")
	ErrBufferFull       = errors.New("cycle: sample limit reached")
	ErrInvalidEnd       = errors.New("cycle: end before start")
)

// Buffer is owned by the session goroutine. Records returned by Close and
// Truncate are detached from the buffer.
type Buffer struct {
	id         string
	number     int
	sessionID  string
	start      time.Time
	last       time.Time
	samples    []mold_monitor.ConvertedSample
	maxSamples int
	closed     bool
}

type Option func(*Buffer)

// WithMaxSamples bounds the number of samples a single cycle may hold.
func WithMaxSamples(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxSamples = n
		}
	}
}

func WithSession(id string) Option {
	return func(b *Buffer) { b.sessionID = id }
}

func Open(number int, start time.Time, opts ...Option) *Buffer {
	b := &Buffer{
		id:     uuid.NewString(),
		number: number,
		start:  start,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxSamples > 0 {
		b.samples = make([]mold_monitor.ConvertedSample, 0, min(b.maxSamples, 4096))
	}
	return b
}

// Append adds s to the open cycle. Timestamps must be >= start and strictly
// increasing.
func (b *Buffer) Append(s mold_monitor.ConvertedSample) error {
	if b.closed {
		return ErrBufferClosed
	}
	if s.Timestamp.Before(b.start) {
		return fmt.Errorf("%w: %s before cycle start %s", ErrSampleOutOfOrder, s.Timestamp, b.start)
	}
	if len(b.samples) > 0 && !s.Timestamp.After(b.last) {
		return fmt.Errorf("%w: %s not after %s", ErrSampleOutOfOrder, s.Timestamp, b.last)
	}
	if b.maxSamples > 0 && len(b.samples) >= b.maxSamples {
		return ErrBufferFull
	}
	b.samples = append(b.samples, s)
	b.last = s.Timestamp
	return nil
}

// Close finalizes a complete cycle ended at end.
func (b *Buffer) Close(end time.Time, reason string) (mold_monitor.CycleRecord, error) {
	return b.finish(end, reason, false)
}

// Truncate finalizes a cycle that was cut short (session stop, fatal error).
func (b *Buffer) Truncate(end time.Time) (mold_monitor.CycleRecord, error) {
	return b.finish(end, mold_monitor.EndReasonStopped, true)
}

func (b *Buffer) finish(end time.Time, reason string, incomplete bool) (mold_monitor.CycleRecord, error) {
	if b.closed {
		return mold_monitor.CycleRecord{}, ErrBufferClosed
	}
	if end.Before(b.start) {
		return mold_monitor.CycleRecord{}, fmt.Errorf("%w: %s < %s", ErrInvalidEnd, end, b.start)
	}
	if len(b.samples) > 0 && end.Before(b.last) {
		end = b.last
	}
	b.closed = true

	samples := b.samples
	b.samples = nil
	return mold_monitor.CycleRecord{
		ID:         b.id,
		Number:     b.number,
		SessionID:  b.sessionID,
		StartTime:  b.start,
		EndTime:    end,
		Incomplete: incomplete,
		EndReason:  reason,
		Samples:    samples,
	}, nil
}

func (b *Buffer) Number() int { return b.number }

func (b *Buffer) Start() time.Time { return b.start }

func (b *Buffer) Len() int { return len(b.samples) }

func (b *Buffer) Closed() bool { return b.closed }

// MaxSamplesFor derives a sample bound from the cycle timeout and the source
// period, with one period of slack. It returns 0 (unbounded) when either is unset.
func MaxSamplesFor(maxCycle, period time.Duration) int {
	if maxCycle <= 0 || period <= 0 {
		return 0
	}
	return int(maxCycle/period) + 2
}
