// Package session runs one monitoring session: it pulls raw tuples from a
// source and, per tick and in order, aligns them, feeds the trigger level to the
// segmenter and appends the converted sample to the open cycle buffer.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mold_monitor"
	"mold_monitor/internal/acquisition"
	"mold_monitor/internal/align"
	"mold_monitor/internal/channel"
	"mold_monitor/internal/cycle"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/metrics"
	"mold_monitor/internal/segmenter"
)

const DefaultQueueSize = 1024

var (
	ErrAlreadyStarted = errors.New("session: already started")
	ErrNoChannels     = errors.New("session: registry has no channels")
)

// Config holds the per-session tuning. Low/High of Segmenter are taken from
// the resolved trigger policy.
type Config struct {
	Segmenter   segmenter.Config
	Trigger     segmenter.Policy
	ResetOnEnd  bool          // also reset the amplifiers when a cycle ends
	QueueSize   int           // notification queue capacity
	SampleEvery int           // forward every Nth sample to observers; 0/1 = all
	MaxRunTime  time.Duration // stop after this much stream time; 0 = unlimited
	MaxSamples  int           // per-cycle sample bound; 0 = derived from the cycle timeout
}

type Option func(*Session)

func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = logger.OrNop(l) }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Session) { s.metrics = metrics.OrNop(m) }
}

func WithResetLine(r ResetLine) Option {
	return func(s *Session) {
		if r != nil {
			s.reset = r
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

type notification struct {
	sample *mold_monitor.ConvertedSample
	record *mold_monitor.CycleRecord
	event  *segmenter.Event
}

// Session is built for one channel configuration and runs at most once.
type Session struct {
	id        string
	cfg       Config
	reg       *channel.Registry
	src       acquisition.Source
	trigger   segmenter.TriggerSource
	seg       *segmenter.Segmenter
	log       *logger.Logger
	metrics   metrics.Recorder
	reset     ResetLine
	observers []Observer

	notify   chan notification
	reserve  int // queue slots kept free of samples for boundaries and records
	started  atomic.Bool
	stopping atomic.Bool
	dropped  atomic.Uint64
	done     chan struct{}
	drained  chan struct{}

	// owned by the run goroutine
	buf      *cycle.Buffer
	first    time.Time
	last     time.Time
	ticks    uint64
	glitches uint64

	mu    sync.RWMutex
	state mold_monitor.SessionState
	err   error
}

// New resolves the trigger against reg and prepares the segmenter. The session
// owns src from Start on and closes it when the run ends.
func New(reg *channel.Registry, src acquisition.Source, cfg Config, opts ...Option) (*Session, error) {
	if reg == nil || reg.Count() == 0 {
		return nil, ErrNoChannels
	}
	if src == nil {
		return nil, errors.New("session: no acquisition source")
	}

	trig, low, high, err := segmenter.Resolve(reg, cfg.Trigger)
	if err != nil {
		return nil, err
	}
	cfg.Segmenter.Low, cfg.Segmenter.High = low, high

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 1
	}
	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = 2 * cycle.MaxSamplesFor(cfg.Segmenter.MaxCycleDuration, src.Period())
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		reg:     reg,
		src:     src,
		trigger: trig,
		log:     logger.NewNop(),
		metrics: metrics.Nop(),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reset == nil {
		s.reset = LogResetLine{Log: s.log}
	}
	s.log = s.log.With("session_id", s.id)

	seg, err := segmenter.New(cfg.Segmenter, s.log.Named("segmenter"))
	if err != nil {
		return nil, err
	}
	s.seg = seg

	s.notify = make(chan notification, cfg.QueueSize)
	s.reserve = cfg.QueueSize / 4
	s.state = mold_monitor.SessionState{
		SessionID: s.id,
		Trigger:   seg.Trigger(),
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Start freezes the channel configuration and launches the acquisition loop.
// It returns immediately; use Wait to block until the session ends.
func (s *Session) Start(ctx context.Context) error {
	if s.started.Swap(true) {
		return ErrAlreadyStarted
	}
	s.reg.Freeze()

	now := time.Now().UTC()
	s.mu.Lock()
	s.state.Running = true
	s.state.StartedAt = now
	s.state.UpdatedAt = now
	s.mu.Unlock()
	s.metrics.SetGauge(metrics.SessionRunning, 1)

	s.log.Infow("session_started",
		"channels", s.reg.Count(),
		"trigger", s.trigger.String(),
		"debounce", s.cfg.Segmenter.Debounce,
		"max_cycle", s.cfg.Segmenter.MaxCycleDuration,
		"period", s.src.Period(),
	)

	go s.dispatch()
	go s.run(ctx)
	return nil
}

// Stop asks the loop to finish; it is observed within one sample period.
// Safe to call from any goroutine, any number of times.
func (s *Session) Stop() {
	if s.stopping.CompareAndSwap(false, true) {
		s.log.Infow("session_stop_requested")
	}
}

// Wait blocks until the loop has ended and every queued notification has been
// delivered. It returns the error that ended the session, if any.
func (s *Session) Wait() error {
	if !s.started.Load() {
		return nil
	}
	<-s.done
	<-s.drained
	return s.Err()
}

// Done is closed when the acquisition loop has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// State returns a snapshot of the live state.
func (s *Session) State() mold_monitor.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.Latest != nil {
		latest := *st.Latest
		st.Latest = &latest
	}
	st.DroppedNotifications = s.dropped.Load()
	return st
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for {
		if s.stopping.Load() {
			s.finish(nil, "stopped")
			return
		}

		raw, err := s.src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.finish(nil, "source_exhausted")
			case ctx.Err() != nil:
				s.finish(nil, "context_done")
			default:
				s.finish(fmt.Errorf("acquisition: %w", err), "source_error")
			}
			return
		}

		if err := s.tick(raw); err != nil {
			s.finish(err, "fatal")
			return
		}

		if s.cfg.MaxRunTime > 0 && raw.Timestamp.Sub(s.first) >= s.cfg.MaxRunTime {
			s.finish(nil, "max_run_time")
			return
		}
	}
}

// tick processes one raw tuple. Any error it returns ends the session.
func (s *Session) tick(raw mold_monitor.RawSample) error {
	began := time.Now()

	if s.ticks > 0 && !raw.Timestamp.After(s.last) {
		return fmt.Errorf("%w: source timestamp %s not after %s", cycle.ErrSampleOutOfOrder, raw.Timestamp, s.last)
	}

	conv, err := align.Align(raw, s.reg)
	if err != nil {
		return err
	}
	level, err := s.trigger.Level(raw, conv)
	if err != nil {
		return err
	}

	if s.ticks == 0 {
		s.first = raw.Timestamp
	}
	s.ticks++
	s.last = raw.Timestamp

	for _, ev := range s.seg.Feed(raw.Timestamp, level) {
		if err := s.handle(ev); err != nil {
			return err
		}
	}

	if s.buf != nil {
		if err := s.buf.Append(conv); err != nil {
			return fmt.Errorf("cycle %d: %w", s.buf.Number(), err)
		}
	}

	if (s.ticks-1)%uint64(s.cfg.SampleEvery) == 0 {
		s.publishSample(conv)
	}

	s.mu.Lock()
	s.state.SamplesProcessed = s.ticks
	s.state.CycleOpen = s.buf != nil
	s.state.CurrentCycle = s.seg.Cycle()
	s.state.Trigger = s.seg.Trigger()
	s.state.Glitches = s.seg.Glitches()
	s.state.Latest = &conv
	s.state.UpdatedAt = raw.Timestamp
	s.mu.Unlock()

	s.metrics.IncCounter(metrics.SamplesProcessed, 1)
	s.metrics.ObserveLatency(metrics.TickDuration, time.Since(began).Seconds())
	return nil
}

func (s *Session) handle(ev segmenter.Event) error {
	switch ev.Kind {
	case segmenter.CycleStart:
		if s.buf != nil {
			return fmt.Errorf("cycle %d started while cycle %d is open", ev.Cycle, s.buf.Number())
		}
		s.buf = cycle.Open(ev.Cycle, ev.Time, cycle.WithSession(s.id), cycle.WithMaxSamples(s.cfg.MaxSamples))
		s.metrics.SetGauge(metrics.CycleOpen, 1)
		s.log.Infow("cycle_started", "cycle", ev.Cycle, "ts", ev.Time)
		s.emitReset(ev.Time)

	case segmenter.CycleEnd:
		if s.buf == nil {
			return fmt.Errorf("cycle %d ended but no cycle is open", ev.Cycle)
		}
		rec, err := s.buf.Close(ev.Time, ev.Reason)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", ev.Cycle, err)
		}
		s.buf = nil
		s.completed(rec)
		if s.cfg.ResetOnEnd {
			s.emitReset(ev.Time)
		}

	case segmenter.Glitch:
		s.metrics.IncCounter(metrics.TriggerGlitches, 1)
	}

	e := ev
	s.publish(notification{event: &e}, false)
	return nil
}

func (s *Session) completed(rec mold_monitor.CycleRecord) {
	s.metrics.SetGauge(metrics.CycleOpen, 0)
	if rec.Incomplete {
		s.metrics.IncCounter(metrics.CyclesIncomplete, 1)
	} else {
		s.metrics.IncCounter(metrics.CyclesCompleted, 1)
		s.metrics.ObserveLatency(metrics.CycleDuration, rec.Duration().Seconds())
		s.mu.Lock()
		s.state.CyclesCompleted++
		s.mu.Unlock()
	}
	s.log.Infow("cycle_finished",
		"cycle", rec.Number,
		"reason", rec.EndReason,
		"incomplete", rec.Incomplete,
		"duration", rec.Duration(),
		"samples", len(rec.Samples),
	)
	s.publish(notification{record: &rec}, false)
}

func (s *Session) emitReset(at time.Time) {
	var err error
	if stamped, ok := s.reset.(StampedResetLine); ok {
		err = stamped.EmitResetAt(at)
	} else {
		err = s.reset.EmitReset()
	}
	if err != nil {
		s.log.Warnw("amplifier_reset_failed", "err", err)
		return
	}
	s.metrics.IncCounter(metrics.ResetsEmitted, 1)
}

// finish truncates an open cycle, records why the loop ended and closes the
// notification queue.
func (s *Session) finish(err error, reason string) {
	if s.buf != nil {
		end := s.last
		if end.Before(s.buf.Start()) {
			end = s.buf.Start()
		}
		rec, terr := s.buf.Truncate(end)
		s.buf = nil
		if terr != nil {
			err = errors.Join(err, terr)
		} else {
			s.completed(rec)
		}
	}

	if cerr := s.src.Close(); cerr != nil {
		s.log.Warnw("source_close_failed", "err", cerr)
	}

	s.mu.Lock()
	s.err = err
	s.state.Running = false
	s.state.CycleOpen = false
	if err != nil {
		s.state.LastError = err.Error()
	}
	s.state.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.metrics.SetGauge(metrics.SessionRunning, 0)
	s.metrics.SetGauge(metrics.CycleOpen, 0)

	if err != nil {
		s.log.Errorw("session_failed", "reason", reason, "err", err, "samples", s.ticks)
	} else {
		s.log.Infow("session_finished", "reason", reason, "samples", s.ticks, "cycles", s.seg.Cycle())
	}

	close(s.notify)
}

func (s *Session) publishSample(conv mold_monitor.ConvertedSample) {
	if len(s.observers) == 0 {
		return
	}
	c := conv
	s.publish(notification{sample: &c}, true)
}

// publish never blocks the acquisition loop. Samples may only use the queue
// up to cap-reserve so boundaries and records still find room when observers
// lag; anything that does not fit is dropped and counted.
func (s *Session) publish(n notification, sample bool) {
	if len(s.observers) == 0 {
		return
	}
	if sample && len(s.notify) >= cap(s.notify)-s.reserve {
		s.drop()
		return
	}
	select {
	case s.notify <- n:
		s.metrics.SetGauge(metrics.QueueLength, float64(len(s.notify)))
	default:
		s.drop()
		if !sample {
			s.log.Warnw("notification_dropped", "record", n.record != nil, "event", n.event != nil)
		}
	}
}

func (s *Session) drop() {
	s.dropped.Add(1)
	s.metrics.IncCounter(metrics.NotificationsDropped, 1)
}

func (s *Session) dispatch() {
	defer close(s.drained)
	for n := range s.notify {
		for _, o := range s.observers {
			switch {
			case n.sample != nil:
				o.OnSample(*n.sample)
			case n.record != nil:
				o.OnCycle(*n.record)
			case n.event != nil:
				o.OnEvent(*n.event)
			}
		}
	}
}
