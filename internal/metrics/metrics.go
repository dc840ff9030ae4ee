// Package metrics exposes the acquisition pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SamplesProcessed     = "mold_samples_processed_total"
	CyclesCompleted      = "mold_cycles_completed_total"
	CyclesIncomplete     = "mold_cycles_incomplete_total"
	TriggerGlitches      = "mold_trigger_glitches_total"
	NotificationsDropped = "mold_notifications_dropped_total"
	ResetsEmitted        = "mold_resets_emitted_total"

	SessionRunning = "mold_session_running"
	CycleOpen      = "mold_cycle_open"
	QueueLength    = "mold_notify_queue_length"

	TickDuration  = "mold_tick_duration_seconds"
	CycleDuration = "mold_cycle_duration_seconds"
)

// Recorder is what the session reports to.
type Recorder interface {
	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
	ObserveLatency(name string, seconds float64)
}

type Prom struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewProm registers the pipeline metrics on reg (prometheus.DefaultRegisterer when nil).
func NewProm(reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
		histos:   map[string]prometheus.Observer{},
	}

	for name, help := range map[string]string{
		SamplesProcessed:     "Raw samples aligned and segmented.",
		CyclesCompleted:      "Cycle records finalized.",
		CyclesIncomplete:     "Cycle records cut short by a session stop or error.",
		TriggerGlitches:      "Trigger transitions shorter than the debounce window.",
		NotificationsDropped: "Observer notifications shed because the queue was full.",
		ResetsEmitted:        "Reset commands sent to the amplifier line.",
	} {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		p.counters[name] = c
	}

	for name, help := range map[string]string{
		SessionRunning: "1 while a monitoring session is running.",
		CycleOpen:      "1 while a cycle is being recorded.",
		QueueLength:    "Notifications waiting for the dispatcher.",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		p.gauges[name] = g
	}

	tick := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    TickDuration,
		Help:    "Time spent aligning, segmenting and buffering one sample.",
		Buckets: prometheus.ExponentialBuckets(0.000005, 2, 14),
	})
	cycle := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    CycleDuration,
		Help:    "Length of finalized cycles.",
		Buckets: prometheus.LinearBuckets(2, 4, 15),
	})
	reg.MustRegister(tick, cycle)
	p.histos[TickDuration] = tick
	p.histos[CycleDuration] = cycle

	return p
}

func (p *Prom) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *Prom) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *Prom) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

type nop struct{}

func (nop) IncCounter(string, float64)     {}
func (nop) SetGauge(string, float64)       {}
func (nop) ObserveLatency(string, float64) {}

// Nop discards everything.
func Nop() Recorder { return nop{} }

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return nop{}
	}
	return r
}
