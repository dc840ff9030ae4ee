package session

import (
	"time"

	"mold_monitor"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/segmenter"
)

// Observer receives session output on the dispatcher goroutine. Callbacks must
// not block for long: while they run, newer notifications queue up and may be
// shed.
type Observer interface {
	OnSample(s mold_monitor.ConvertedSample)
	OnCycle(r mold_monitor.CycleRecord)
	OnEvent(e segmenter.Event)
}

// ObserverFuncs adapts plain functions; nil fields are skipped.
type ObserverFuncs struct {
	Sample func(mold_monitor.ConvertedSample)
	Cycle  func(mold_monitor.CycleRecord)
	Event  func(segmenter.Event)
}

func (o ObserverFuncs) OnSample(s mold_monitor.ConvertedSample) {
	if o.Sample != nil {
		o.Sample(s)
	}
}

func (o ObserverFuncs) OnCycle(r mold_monitor.CycleRecord) {
	if o.Cycle != nil {
		o.Cycle(r)
	}
}

func (o ObserverFuncs) OnEvent(e segmenter.Event) {
	if o.Event != nil {
		o.Event(e)
	}
}

// ResetLine is the logical reset command of the charge amplifiers. The session
// calls it from the acquisition goroutine, so it has to return quickly.
type ResetLine interface {
	EmitReset() error
}

// StampedResetLine is a ResetLine that also wants the stream time of the
// boundary that caused the reset.
type StampedResetLine interface {
	ResetLine
	EmitResetAt(at time.Time) error
}

// LogResetLine only records the command; used when no relay is wired.
type LogResetLine struct {
	Log *logger.Logger
}

func (l LogResetLine) EmitReset() error {
	logger.OrNop(l.Log).Infow("amplifier_reset")
	return nil
}
