// Package acquisition provides the sources of synchronized raw sample tuples.
package acquisition

import (
	"context"
	"errors"
	"time"

	"mold_monitor"
)

// Source delivers one RawSample per call, in strictly increasing time order.
// Next blocks until the sample is available or ctx is done. A finite source
// returns io.EOF once it is exhausted.
type Source interface {
	Next(ctx context.Context) (mold_monitor.RawSample, error)
	Period() time.Duration
	Close() error
}

var ErrSourceClosed = errors.New("acquisition: source closed")

// pacer releases one tick per period. A nil pacer never blocks.
type pacer struct {
	t *time.Ticker
}

func newPacer(period time.Duration, paced bool) *pacer {
	if !paced || period <= 0 {
		return nil
	}
	return &pacer{t: time.NewTicker(period)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.t.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p != nil {
		p.t.Stop()
	}
}
