package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mold_monitor"
	"mold_monitor/internal/calibration"
	"mold_monitor/internal/channel"
	"mold_monitor/internal/segmenter"
)

// Profile is the channel layout of one mold: which sensor sits on which DAQ
// input, the calibration sets of the pressure sensors and the cycle trigger.
type Profile struct {
	Name         string                     `yaml:"name" json:"name"`
	SampleRateHz float64                    `yaml:"sample_rate_hz" json:"sample_rate_hz"`
	Decimation   int                        `yaml:"decimation" json:"decimation"` // live feed forwards every Nth sample
	Channels     []ChannelSpec              `yaml:"channels" json:"channels"`
	PressureSets map[string]PressureSetSpec `yaml:"pressure_sets" json:"pressure_sets"`
	Trigger      TriggerSpec                `yaml:"trigger" json:"trigger"`
}

type ChannelSpec struct {
	Input int    `yaml:"input" json:"input"`
	Type  string `yaml:"type" json:"type"` // T | P | I or the long names
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// temperature
	VoltageRange float64 `yaml:"voltage_range,omitempty" json:"voltage_range,omitempty"`
	UnitsPerVolt float64 `yaml:"units_per_volt,omitempty" json:"units_per_volt,omitempty"`
	Scale        float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Offset       float64 `yaml:"offset,omitempty" json:"offset,omitempty"`

	// pressure
	CalibrationSet string `yaml:"calibration_set,omitempty" json:"calibration_set,omitempty"`

	// trigger, raw codes
	ThresholdLow  float64 `yaml:"threshold_low,omitempty" json:"threshold_low,omitempty"`
	ThresholdHigh float64 `yaml:"threshold_high,omitempty" json:"threshold_high,omitempty"`
}

// PressureSetSpec gives the span either directly (full_scale) or as a charge
// amplifier range and sensor sensitivity (qmax / sensitivity).
type PressureSetSpec struct {
	FullScale   float64 `yaml:"full_scale,omitempty" json:"full_scale,omitempty"`
	MaxCode     float64 `yaml:"max_code,omitempty" json:"max_code,omitempty"`
	Qmax        float64 `yaml:"qmax_pc,omitempty" json:"qmax_pc,omitempty"`
	Sensitivity float64 `yaml:"sensitivity_pc_bar,omitempty" json:"sensitivity_pc_bar,omitempty"`
}

// TriggerSpec selects the cycle trigger. Channel -1 uses the dedicated trigger
// input; any other value names the profile channel whose converted value is
// compared against Low/High.
type TriggerSpec struct {
	Channel    int     `yaml:"channel" json:"channel"`
	Low        float64 `yaml:"low,omitempty" json:"low,omitempty"`
	High       float64 `yaml:"high,omitempty" json:"high,omitempty"`
	DebounceMS float64 `yaml:"debounce_ms" json:"debounce_ms"`
	MaxCycleS  float64 `yaml:"max_cycle_s" json:"max_cycle_s"`
	RearmS     float64 `yaml:"rearm_s" json:"rearm_s"`
}

const (
	DefaultSampleRateHz = 6000.0
	DefaultDecimation   = 100
	DefaultVoltageRange = 10.0
	DefaultUnitsPerVolt = 100.0 // thermocouple amplifier, °C per volt
	DefaultDebounceMS   = 10.0
	DefaultMaxCycleS    = 120.0
	DefaultRearmS       = 2.0
	DefaultQmax         = 20000.0

	triggerLowFrac  = 0.2
	triggerHighFrac = 0.8
)

// DefaultProfile is the bench layout: inputs 0..4 wired as two melt
// thermocouples, two cavity pressure sensors and the inductive mold switch.
func DefaultProfile() *Profile {
	p := &Profile{
		Name: "default",
		Channels: []ChannelSpec{
			{Input: 0, Type: "T"},
			{Input: 1, Type: "T"},
			{Input: 2, Type: "P", CalibrationSet: "cavity-2.5"},
			{Input: 3, Type: "P", CalibrationSet: "cavity-2.508"},
			{Input: 4, Type: "I"},
		},
		PressureSets: map[string]PressureSetSpec{
			"cavity-2.5":   {Qmax: DefaultQmax, Sensitivity: 2.5},
			"cavity-2.508": {Qmax: DefaultQmax, Sensitivity: 2.508},
		},
		Trigger: TriggerSpec{Channel: -1},
	}
	p.applyDefaults()
	return p
}

// LoadProfile reads a profile file; an empty path yields DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(raw)
}

// ParseProfile decodes YAML (and therefore JSON) profile text.
func ParseProfile(raw []byte) (*Profile, error) {
	p := Profile{Trigger: TriggerSpec{Channel: -1, DebounceMS: -1, MaxCycleS: -1, RearmS: -1}}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// YAML renders the profile in its file format.
func (p *Profile) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}

// applyDefaults fills unset values. Negative trigger timings mean "not given"
// so that an explicit 0 in a file disables the feature.
func (p *Profile) applyDefaults() {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.SampleRateHz <= 0 {
		p.SampleRateHz = DefaultSampleRateHz
	}
	if p.Decimation <= 0 {
		p.Decimation = DefaultDecimation
	}
	for i := range p.Channels {
		c := &p.Channels[i]
		t, err := mold_monitor.ParseChannelType(c.Type)
		if err != nil {
			continue
		}
		switch t {
		case mold_monitor.ChannelTemperature:
			if c.VoltageRange == 0 {
				c.VoltageRange = DefaultVoltageRange
			}
			if c.UnitsPerVolt == 0 {
				c.UnitsPerVolt = DefaultUnitsPerVolt
			}
		case mold_monitor.ChannelTrigger:
			if c.ThresholdLow == 0 && c.ThresholdHigh == 0 {
				c.ThresholdLow = triggerLowFrac * calibration.DefaultMaxCode
				c.ThresholdHigh = triggerHighFrac * calibration.DefaultMaxCode
			}
		}
	}
	if p.Trigger.DebounceMS < 0 {
		p.Trigger.DebounceMS = DefaultDebounceMS
	}
	if p.Trigger.MaxCycleS < 0 {
		p.Trigger.MaxCycleS = DefaultMaxCycleS
	}
	if p.Trigger.RearmS < 0 {
		p.Trigger.RearmS = DefaultRearmS
	}
}

func (p *Profile) Validate() error {
	if len(p.Channels) == 0 {
		return errors.New("profile: at least one channel is required")
	}
	if _, err := p.Catalog(); err != nil {
		return err
	}
	for i, c := range p.Channels {
		t, err := mold_monitor.ParseChannelType(c.Type)
		if err != nil {
			return fmt.Errorf("profile: channel %d: %w", i, err)
		}
		if t == mold_monitor.ChannelPressure && strings.TrimSpace(c.CalibrationSet) == "" {
			return fmt.Errorf("profile: channel %d: pressure channel needs calibration_set", i)
		}
	}
	if p.Trigger.Channel < -1 || p.Trigger.Channel >= len(p.Channels) {
		return fmt.Errorf("profile: trigger channel %d out of range", p.Trigger.Channel)
	}
	if p.Trigger.Channel >= 0 && p.Trigger.High <= p.Trigger.Low {
		return errors.New("profile: trigger high must exceed low")
	}
	return nil
}

// Catalog builds the calibration catalog from the pressure sets.
func (p *Profile) Catalog() (calibration.Catalog, error) {
	cat := calibration.Catalog{}
	for id, s := range p.PressureSets {
		set := calibration.PressureSet{FullScale: s.FullScale, MaxCode: s.MaxCode}
		if set.FullScale == 0 && s.Sensitivity > 0 {
			qmax := s.Qmax
			if qmax == 0 {
				qmax = DefaultQmax
			}
			set = calibration.SensitivitySet(qmax, s.Sensitivity)
			if s.MaxCode > 0 {
				set.MaxCode = s.MaxCode
			}
		}
		if err := cat.Add(id, set); err != nil {
			return nil, fmt.Errorf("profile: %w", err)
		}
	}
	return cat, nil
}

// Descriptors maps the channel list to descriptors; the list position is the
// channel index.
func (p *Profile) Descriptors() ([]mold_monitor.ChannelDescriptor, error) {
	out := make([]mold_monitor.ChannelDescriptor, 0, len(p.Channels))
	for i, c := range p.Channels {
		t, err := mold_monitor.ParseChannelType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("profile: channel %d: %w", i, err)
		}
		d := mold_monitor.ChannelDescriptor{Index: i, Type: t, Input: c.Input, Label: c.Label}
		switch t {
		case mold_monitor.ChannelTemperature:
			d.Calibration.Scale = c.Scale
			if d.Calibration.Scale == 0 {
				d.Calibration.Scale = calibration.TemperatureScale(c.VoltageRange, c.UnitsPerVolt, calibration.DefaultMaxCode)
			}
			d.Calibration.Offset = c.Offset
		case mold_monitor.ChannelPressure:
			d.Calibration.SetID = c.CalibrationSet
		case mold_monitor.ChannelTrigger:
			d.Calibration.ThresholdLow = c.ThresholdLow
			d.Calibration.ThresholdHigh = c.ThresholdHigh
		}
		out = append(out, d)
	}
	return out, nil
}

// Registry returns a configured, unfrozen channel registry for this profile.
func (p *Profile) Registry() (*channel.Registry, error) {
	cat, err := p.Catalog()
	if err != nil {
		return nil, err
	}
	descs, err := p.Descriptors()
	if err != nil {
		return nil, err
	}
	reg := channel.NewRegistry(cat)
	if err := reg.Configure(descs); err != nil {
		return nil, err
	}
	return reg, nil
}

func (p *Profile) TriggerPolicy() segmenter.Policy {
	return segmenter.Policy{Channel: p.Trigger.Channel, Low: p.Trigger.Low, High: p.Trigger.High}
}

// SegmenterConfig returns the edge timing; the band is filled in by the session.
func (p *Profile) SegmenterConfig() segmenter.Config {
	return segmenter.Config{
		Debounce:         msDuration(p.Trigger.DebounceMS),
		MaxCycleDuration: secDuration(p.Trigger.MaxCycleS),
		Rearm:            secDuration(p.Trigger.RearmS),
	}
}

// SamplePeriod is the acquisition period implied by the sample rate.
func (p *Profile) SamplePeriod() time.Duration {
	return time.Duration(float64(time.Second) / p.SampleRateHz)
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func secDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
