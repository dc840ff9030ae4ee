package acquisition

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"mold_monitor"
	"mold_monitor/internal/calibration"
)

// ----------- Simulation defaults -----------
const (
	DefaultPeriod      = time.Millisecond
	DefaultCycleTime   = 20 * time.Second // shot-to-shot
	DefaultShotTime    = 8 * time.Second  // mold closed, trigger high
	DefaultMeltC       = 230.0
	DefaultMeltRiseC   = 25.0
	DefaultPeakBar     = 600.0
	DefaultNoiseCodes  = 20.0
	triggerHighFrac    = 0.9
	triggerLowFrac     = 0.02
	temperatureRangeV  = 10.0
	temperatureCPerVol = 100.0
)

// SimulatorConfig shapes the synthetic mold shots.
type SimulatorConfig struct {
	Period     time.Duration
	CycleTime  time.Duration
	ShotTime   time.Duration
	MeltC      float64
	MeltRiseC  float64
	PeakBar    float64
	NoiseCodes float64 // uniform noise amplitude in ADC codes
	Seed       uint64
	Paced      bool      // release samples in real time
	Start      time.Time // zero = time.Now() at construction
}

func (c *SimulatorConfig) ApplyDefaults() {
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.CycleTime <= 0 {
		c.CycleTime = DefaultCycleTime
	}
	if c.ShotTime <= 0 {
		c.ShotTime = DefaultShotTime
	}
	if c.MeltC == 0 {
		c.MeltC = DefaultMeltC
	}
	if c.MeltRiseC == 0 {
		c.MeltRiseC = DefaultMeltRiseC
	}
	if c.PeakBar == 0 {
		c.PeakBar = DefaultPeakBar
	}
	if c.NoiseCodes < 0 {
		c.NoiseCodes = 0
	}
	if c.Start.IsZero() {
		c.Start = time.Now().UTC()
	}
}

func (c *SimulatorConfig) Validate() error {
	if c.ShotTime >= c.CycleTime {
		return errors.New("simulator: shot time must be shorter than cycle time")
	}
	return nil
}

// Simulator generates raw ADC codes for a configured channel layout: melt
// temperature rising during the shot, a pressure hump and a trigger that is
// high while the mold is closed. The clock is synthetic, so timestamps advance
// by exactly one period per sample.
type Simulator struct {
	cfg   SimulatorConfig
	descs []mold_monitor.ChannelDescriptor
	rng   *rand.Rand
	pacer *pacer

	mu     sync.Mutex
	n      int64
	closed bool
}

func NewSimulator(cfg SimulatorConfig, descs []mold_monitor.ChannelDescriptor) (*Simulator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, errors.New("simulator: no channels")
	}
	return &Simulator{
		cfg:   cfg,
		descs: append([]mold_monitor.ChannelDescriptor(nil), descs...),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		pacer: newPacer(cfg.Period, cfg.Paced),
	}, nil
}

func (s *Simulator) Next(ctx context.Context) (mold_monitor.RawSample, error) {
	if err := s.pacer.wait(ctx); err != nil {
		return mold_monitor.RawSample{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return mold_monitor.RawSample{}, ErrSourceClosed
	}

	elapsed := time.Duration(s.n) * s.cfg.Period
	s.n++
	phase := elapsed % s.cfg.CycleTime

	values := make([]float64, len(s.descs))
	for i, d := range s.descs {
		values[i] = s.code(d, phase) + s.noise()
	}
	return mold_monitor.RawSample{Timestamp: s.cfg.Start.Add(elapsed), Values: values}, nil
}

// code is the noiseless raw value of channel d at the given position in the cycle.
func (s *Simulator) code(d mold_monitor.ChannelDescriptor, phase time.Duration) float64 {
	inShot := phase < s.cfg.ShotTime
	shape := 0.0
	if inShot {
		shape = math.Sin(math.Pi * float64(phase) / float64(s.cfg.ShotTime))
	}

	switch d.Type {
	case mold_monitor.ChannelTemperature:
		scale := d.Calibration.Scale
		if scale == 0 {
			scale = calibration.TemperatureScale(temperatureRangeV, temperatureCPerVol, calibration.DefaultMaxCode)
		}
		return (s.cfg.MeltC + s.cfg.MeltRiseC*shape - d.Calibration.Offset) / scale
	case mold_monitor.ChannelPressure:
		if d.Calibration.FullScale == 0 {
			return 0
		}
		maxCode := d.Calibration.MaxCode
		if maxCode == 0 {
			maxCode = calibration.DefaultMaxCode
		}
		return s.cfg.PeakBar * shape * maxCode / d.Calibration.FullScale
	case mold_monitor.ChannelTrigger:
		if inShot {
			return triggerHighFrac * calibration.DefaultMaxCode
		}
		return triggerLowFrac * calibration.DefaultMaxCode
	default:
		return 0
	}
}

func (s *Simulator) noise() float64 {
	if s.cfg.NoiseCodes == 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * s.cfg.NoiseCodes
}

func (s *Simulator) Period() time.Duration { return s.cfg.Period }

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pacer.stop()
	return nil
}
