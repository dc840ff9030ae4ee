package service

import (
	"context"
	"fmt"
	"time"

	"mold_monitor"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/repository"
	"mold_monitor/internal/segmenter"
	"mold_monitor/internal/session"
)

const (
	persistTimeout = 5 * time.Second
	glitchLogEvery = time.Second
	resetBacklog   = 64
)

// recorder persists session output and forwards it to the live feed. Its
// callbacks run on the session dispatcher goroutine.
type recorder struct {
	ctx       context.Context
	sessionID string
	cycles    repository.CycleRepo
	events    repository.EventRepo
	feed      *Feed
	log       *logger.Logger

	// glitches since the last TRIGGER_GLITCH entry
	glitches    int
	glitchFirst time.Time
	glitchLast  time.Time
	glitchFlush time.Time
}

func newRecorder(ctx context.Context, cycles repository.CycleRepo, events repository.EventRepo, feed *Feed, log *logger.Logger) *recorder {
	return &recorder{
		// The final truncated cycle is written after a shutdown cancels ctx.
		ctx:    context.WithoutCancel(ctx),
		cycles: cycles,
		events: events,
		feed:   feed,
		log:    logger.OrNop(log),
	}
}

func (r *recorder) OnSample(s mold_monitor.ConvertedSample) {
	r.feed.Publish(FeedMessage{Type: FeedSample, Data: s})
}

func (r *recorder) OnCycle(rec mold_monitor.CycleRecord) {
	ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
	defer cancel()

	if err := r.cycles.Save(ctx, rec); err != nil {
		r.log.Errorw("cycle_save_failed", "cycle", rec.Number, "err", err)
		r.append(mold_monitor.EventError, rec.EndTime,
			fmt.Sprintf("Cycle %d could not be saved: %v", rec.Number, err), nil)
	}

	sum := rec.Summary()
	desc := fmt.Sprintf("Cycle %d ended (%s) after %s", rec.Number, rec.EndReason, rec.Duration().Round(time.Millisecond))
	if rec.Incomplete {
		desc = fmt.Sprintf("Cycle %d truncated after %s", rec.Number, rec.Duration().Round(time.Millisecond))
	}
	r.append(mold_monitor.EventCycleEnd, rec.EndTime, desc, sum)
	r.feed.Publish(FeedMessage{Type: FeedCycle, Data: sum})
}

func (r *recorder) OnEvent(e segmenter.Event) {
	switch e.Kind {
	case segmenter.CycleStart:
		r.append(mold_monitor.EventCycleStart, e.Time, fmt.Sprintf("Cycle %d started", e.Cycle),
			map[string]any{"cycle": e.Cycle})
		r.feed.Publish(FeedMessage{Type: FeedBoundary, Data: boundary(e)})
	case segmenter.CycleEnd:
		r.feed.Publish(FeedMessage{Type: FeedBoundary, Data: boundary(e)})
	case segmenter.Glitch:
		r.glitch(e.Time)
	}
}

// glitch folds bursts of rejected trigger changes into at most one log entry
// per glitchLogEvery of stream time; the remainder is written by flushGlitches
// when the session ends.
func (r *recorder) glitch(ts time.Time) {
	if r.glitches == 0 {
		r.glitchFirst = ts
	}
	r.glitches++
	r.glitchLast = ts
	if r.glitchFlush.IsZero() || ts.Sub(r.glitchFlush) >= glitchLogEvery {
		r.flushGlitches()
	}
}

func (r *recorder) flushGlitches() {
	if r.glitches == 0 {
		return
	}
	r.glitchFlush = r.glitchLast
	desc := "Trigger change shorter than the debounce window ignored"
	if r.glitches > 1 {
		desc = fmt.Sprintf("%d trigger changes shorter than the debounce window ignored", r.glitches)
	}
	r.append(mold_monitor.EventTriggerGlitch, r.glitchFirst, desc, map[string]any{
		"count": r.glitches,
		"first": r.glitchFirst,
		"last":  r.glitchLast,
	})
	r.glitches = 0
}

func (r *recorder) append(typ string, at time.Time, desc string, meta any) {
	ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
	defer cancel()
	if meta == nil {
		meta = map[string]any{}
	}
	if m, ok := meta.(map[string]any); ok {
		m["session_id"] = r.sessionID
	}
	err := r.events.Append(ctx, mold_monitor.SessionEvent{
		OccurredAt:  at,
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		r.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

type boundaryMessage struct {
	Kind   string    `json:"kind"`
	Cycle  int       `json:"cycle"`
	Time   time.Time `json:"ts"`
	Reason string    `json:"reason,omitempty"`
}

func boundary(e segmenter.Event) boundaryMessage {
	return boundaryMessage{Kind: e.Kind.String(), Cycle: e.Cycle, Time: e.Time, Reason: e.Reason}
}

// resetLine logs the amplifier reset like session.LogResetLine and queues a
// RESET entry for the event log without blocking the acquisition loop.
type resetLine struct {
	session.LogResetLine
	pending chan time.Time
	drained chan struct{}
}

func newResetLine(log *logger.Logger) *resetLine {
	return &resetLine{
		LogResetLine: session.LogResetLine{Log: log},
		pending:      make(chan time.Time, resetBacklog),
		drained:      make(chan struct{}),
	}
}

func (l *resetLine) EmitReset() error {
	return l.EmitResetAt(time.Now().UTC())
}

// EmitResetAt queues a RESET entry stamped with the boundary's stream time,
// the clock every other session event uses.
func (l *resetLine) EmitResetAt(at time.Time) error {
	if err := l.LogResetLine.EmitReset(); err != nil {
		return err
	}
	select {
	case l.pending <- at:
	default:
	}
	return nil
}

// drain writes queued resets until the line is closed.
func (l *resetLine) drain(r *recorder) {
	defer close(l.drained)
	for at := range l.pending {
		r.append(mold_monitor.EventReset, at, "Charge amplifiers reset", nil)
	}
}

// close stops the line and waits for queued entries to be written.
func (l *resetLine) close() {
	close(l.pending)
	<-l.drained
}
