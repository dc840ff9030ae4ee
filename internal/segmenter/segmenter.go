// Package segmenter detects injection-cycle boundaries from a trigger level.
//
// The level passes a hysteresis band first, so a single noisy sample inside the
// band never changes the discrete level. A discrete change must then persist for
// the debounce window before it is accepted as an edge; the accepted edge is
// stamped at edge time + debounce. Changes that revert earlier are glitches:
// they are logged, counted and otherwise ignored.
package segmenter

import (
	"errors"
	"time"

	"mold_monitor"
	"mold_monitor/internal/logger"
)

// State of the cycle state machine.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "RECORDING"
	}
	return "IDLE"
}

// EventKind identifies what Feed reports.
type EventKind int

const (
	CycleStart EventKind = iota + 1
	CycleEnd
	Glitch
)

func (k EventKind) String() string {
	switch k {
	case CycleStart:
		return "CYCLE_START"
	case CycleEnd:
		return "CYCLE_END"
	case Glitch:
		return "GLITCH"
	default:
		return "UNKNOWN"
	}
}

// Event is a boundary (or glitch) produced while feeding the trigger stream.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Cycle  int    // 1-based cycle number; 0 for glitches
	Reason string // EndReason* for CycleEnd
}

// Config tunes edge qualification.
type Config struct {
	Debounce         time.Duration
	MaxCycleDuration time.Duration // 0 disables the safety timeout
	// Rearm is the minimum idle time after an edge-ended cycle. A trigger
	// that rose inside it and is still high starts the cycle once it elapses.
	Rearm time.Duration
	Low   float64 // level below = LOW
	High  float64 // level above = HIGH
}

var (
	ErrInvalidBand     = errors.New("segmenter: high threshold must exceed low threshold")
	ErrNegativeTimings = errors.New("segmenter: durations must not be negative")
)

func (c Config) Validate() error {
	if c.High <= c.Low {
		return ErrInvalidBand
	}
	if c.Debounce < 0 || c.MaxCycleDuration < 0 || c.Rearm < 0 {
		return ErrNegativeTimings
	}
	return nil
}

// Segmenter is driven by one goroutine; it performs no I/O besides logging.
type Segmenter struct {
	cfg Config
	log *logger.Logger

	state       State
	initialized bool
	stable      bool // debounced level
	pending     bool
	pendingAt   time.Time
	armed       bool // a LOW level has been seen since start
	restart     bool // timeout fired while the trigger was still high

	cycle      int
	cycleStart time.Time
	lastEnd    time.Time
	edgeEnded  bool // last cycle ended on a falling edge
	held       bool // a rising edge arrived inside the re-arm hold-off
	glitches   uint64
	trigger    mold_monitor.TriggerState
}

func New(cfg Config, log *logger.Logger) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		cfg:     cfg,
		log:     logger.OrNop(log),
		trigger: mold_monitor.TriggerState{Level: mold_monitor.TriggerIdle},
	}, nil
}

// Feed consumes one trigger level observed at ts. Timestamps must increase.
func (s *Segmenter) Feed(ts time.Time, level float64) []Event {
	high := s.hysteresis(level)

	if !s.initialized {
		s.initialized = true
		s.stable = high
		s.armed = !high
		if high {
			s.trigger = mold_monitor.TriggerState{Level: mold_monitor.TriggerActive, LastTransition: ts}
			s.log.Warnw("trigger_active_at_start", "ts", ts, "level", level)
		}
		return nil
	}

	var events []Event

	if s.restart {
		s.restart = false
		if s.state == Idle && s.stable && high {
			events = append(events, s.start(ts))
		}
	}

	if s.state == Recording && s.cfg.MaxCycleDuration > 0 && ts.Sub(s.cycleStart) >= s.cfg.MaxCycleDuration {
		events = append(events, s.end(ts, mold_monitor.EndReasonTimeout))
		s.restart = true
		s.log.Warnw("cycle_timeout", "cycle", s.cycle, "max_duration", s.cfg.MaxCycleDuration)
	}

	switch {
	case high != s.stable:
		if !s.pending {
			s.pending = true
			s.pendingAt = ts
		}
		if ts.Sub(s.pendingAt) >= s.cfg.Debounce {
			events = append(events, s.accept(high, s.pendingAt.Add(s.cfg.Debounce))...)
		}
	case s.pending:
		s.pending = false
		s.glitches++
		s.log.Infow("trigger_glitch", "edge_at", s.pendingAt, "reverted_at", ts, "width", ts.Sub(s.pendingAt))
		events = append(events, Event{Kind: Glitch, Time: ts})
	}

	if s.held && !s.pending && s.state == Idle && s.stable && ts.Sub(s.lastEnd) >= s.cfg.Rearm {
		s.held = false
		s.log.Infow("trigger_rearmed_while_high", "ts", ts, "since_last_end", ts.Sub(s.lastEnd))
		events = append(events, s.start(ts))
	}

	return events
}

// hysteresis keeps the previous discrete level while the signal is inside the band.
func (s *Segmenter) hysteresis(level float64) bool {
	switch {
	case level > s.cfg.High:
		return true
	case level < s.cfg.Low:
		return false
	default:
		if s.pending {
			return !s.stable
		}
		return s.stable
	}
}

func (s *Segmenter) accept(high bool, at time.Time) []Event {
	s.pending = false
	s.stable = high
	s.trigger.LastTransition = at

	if !high {
		s.trigger.Level = mold_monitor.TriggerIdle
		s.armed = true
		s.held = false
		if s.state == Recording {
			return []Event{s.end(at, mold_monitor.EndReasonEdge)}
		}
		return nil
	}

	s.trigger.Level = mold_monitor.TriggerActive
	if s.state != Idle || !s.armed {
		return nil
	}
	if s.cfg.Rearm > 0 && s.edgeEnded && at.Sub(s.lastEnd) < s.cfg.Rearm {
		s.log.Infow("trigger_rearm_holdoff", "edge_at", at, "since_last_end", at.Sub(s.lastEnd))
		s.held = true
		return nil
	}
	return []Event{s.start(at)}
}

func (s *Segmenter) start(at time.Time) Event {
	s.state = Recording
	s.cycle++
	s.cycleStart = at
	s.log.Debugw("cycle_start", "cycle", s.cycle, "ts", at)
	return Event{Kind: CycleStart, Time: at, Cycle: s.cycle}
}

func (s *Segmenter) end(at time.Time, reason string) Event {
	s.state = Idle
	s.lastEnd = at
	s.edgeEnded = reason == mold_monitor.EndReasonEdge
	s.log.Debugw("cycle_end", "cycle", s.cycle, "ts", at, "reason", reason)
	return Event{Kind: CycleEnd, Time: at, Cycle: s.cycle, Reason: reason}
}

func (s *Segmenter) State() State { return s.state }

func (s *Segmenter) Trigger() mold_monitor.TriggerState { return s.trigger }

func (s *Segmenter) Glitches() uint64 { return s.glitches }

// Cycle is the number of the current (or last) cycle.
func (s *Segmenter) Cycle() int { return s.cycle }
