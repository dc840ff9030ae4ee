package acquisition

import (
	"context"
	"io"
	"sync"
	"time"

	"mold_monitor"
)

// Replay plays back recorded samples, e.g. from a bench capture or a test.
type Replay struct {
	mu      sync.Mutex
	samples []mold_monitor.RawSample
	pos     int
	period  time.Duration
	pacer   *pacer
	closed  bool
}

// NewReplay returns a source over samples. With paced set, samples are
// released once per period; otherwise as fast as they are read.
func NewReplay(samples []mold_monitor.RawSample, period time.Duration, paced bool) *Replay {
	return &Replay{
		samples: samples,
		period:  period,
		pacer:   newPacer(period, paced),
	}
}

func (r *Replay) Next(ctx context.Context) (mold_monitor.RawSample, error) {
	if err := r.pacer.wait(ctx); err != nil {
		return mold_monitor.RawSample{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return mold_monitor.RawSample{}, ErrSourceClosed
	}
	if r.pos >= len(r.samples) {
		return mold_monitor.RawSample{}, io.EOF
	}
	s := r.samples[r.pos]
	r.pos++
	return s, nil
}

func (r *Replay) Period() time.Duration { return r.period }

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pacer.stop()
	return nil
}
