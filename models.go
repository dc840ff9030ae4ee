package mold_monitor

import (
	"fmt"
	"strings"
	"time"
)

// ChannelType is the sensor family wired to an analog input.
type ChannelType string

const (
	ChannelTemperature ChannelType = "TEMPERATURE"
	ChannelPressure    ChannelType = "PRESSURE"
	ChannelTrigger     ChannelType = "TRIGGER" // inductive proximity sensor on the mold
)

// ParseChannelType accepts the long names and the single-letter codes (T, P, I)
// used by the DAQ configuration dialog.
func ParseChannelType(s string) (ChannelType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T", string(ChannelTemperature):
		return ChannelTemperature, nil
	case "P", string(ChannelPressure):
		return ChannelPressure, nil
	case "I", string(ChannelTrigger):
		return ChannelTrigger, nil
	default:
		return "", fmt.Errorf("unknown channel type %q", s)
	}
}

// Unit returns the physical unit produced by the calibration of this type.
func (t ChannelType) Unit() string {
	switch t {
	case ChannelTemperature:
		return "°C"
	case ChannelPressure:
		return "bar"
	case ChannelTrigger:
		return "0/1"
	default:
		return "V"
	}
}

// CalibrationParams carries the type-specific conversion parameters of one channel.
// Pressure channels name a calibration set; FullScale and MaxCode are resolved from
// that set when the registry is configured.
type CalibrationParams struct {
	Scale  float64 `json:"scale,omitempty"`  // temperature: units per raw unit
	Offset float64 `json:"offset,omitempty"` // temperature: units

	SetID     string  `json:"set_id,omitempty"`     // pressure: sensor serial / mounting position
	FullScale float64 `json:"full_scale,omitempty"` // pressure: rated span of the set, bar
	MaxCode   float64 `json:"max_code,omitempty"`   // pressure: ADC code at full scale

	ThresholdLow  float64 `json:"threshold_low,omitempty"`  // trigger: raw level below = LOW
	ThresholdHigh float64 `json:"threshold_high,omitempty"` // trigger: raw level above = HIGH
}

// ChannelDescriptor binds a logical channel index to a sensor type and its calibration.
type ChannelDescriptor struct {
	Index       int               `json:"index"`
	Type        ChannelType       `json:"type"`
	Input       int               `json:"input"` // physical DAQ input number
	Label       string            `json:"label,omitempty"`
	Calibration CalibrationParams `json:"calibration"`
}

// DisplayLabel falls back to the DAQ input name when no label is configured.
func (d ChannelDescriptor) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("CH%d", d.Input)
}

// RawSample is one synchronized tuple delivered by the acquisition source.
type RawSample struct {
	Timestamp time.Time `json:"ts"`
	Values    []float64 `json:"values"`
}

// ConvertedSample holds physical values keyed by channel index.
type ConvertedSample struct {
	Timestamp time.Time       `json:"ts"`
	Values    map[int]float64 `json:"values"`
}

// Cycle end reasons.
const (
	EndReasonEdge    = "EDGE"
	EndReasonTimeout = "TIMEOUT"
	EndReasonStopped = "STOPPED"
)

// CycleRecord is one injection shot worth of converted samples.
type CycleRecord struct {
	ID         string            `json:"id"`
	Number     int               `json:"number"`
	SessionID  string            `json:"session_id,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time,omitempty"`
	Incomplete bool              `json:"incomplete"`
	EndReason  string            `json:"end_reason,omitempty"`
	Samples    []ConvertedSample `json:"samples,omitempty"`
}

// Duration is zero while the record is open.
func (r CycleRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Series returns the time series of one channel, time relative to the cycle start.
func (r CycleRecord) Series(index int) (offsets []float64, values []float64) {
	offsets = make([]float64, 0, len(r.Samples))
	values = make([]float64, 0, len(r.Samples))
	for _, s := range r.Samples {
		v, ok := s.Values[index]
		if !ok {
			continue
		}
		offsets = append(offsets, s.Timestamp.Sub(r.StartTime).Seconds())
		values = append(values, v)
	}
	return offsets, values
}

// TriggerLevel is the debounced level of the cycle trigger.
type TriggerLevel string

const (
	TriggerIdle   TriggerLevel = "IDLE"
	TriggerActive TriggerLevel = "ACTIVE"
)

type TriggerState struct {
	Level          TriggerLevel `json:"level"`
	LastTransition time.Time    `json:"last_transition,omitempty"`
}

// SessionState is the live snapshot of the monitoring session.
type SessionState struct {
	SessionID            string           `json:"session_id,omitempty"`
	Running              bool             `json:"running"`
	StartedAt            time.Time        `json:"started_at,omitempty"`
	CycleOpen            bool             `json:"cycle_open"`
	CurrentCycle         int              `json:"current_cycle"`
	Trigger              TriggerState     `json:"trigger"`
	SamplesProcessed     uint64           `json:"samples_processed"`
	CyclesCompleted      uint64           `json:"cycles_completed"`
	Glitches             uint64           `json:"glitches"`
	DroppedNotifications uint64           `json:"dropped_notifications"`
	LastError            string           `json:"last_error,omitempty"`
	Latest               *ConvertedSample `json:"latest,omitempty"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// SessionEvent is a single log entry.
type SessionEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // SESSION_START | SESSION_STOP | CYCLE_START | CYCLE_END | TRIGGER_GLITCH | RESET | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// Event types written to the session log.
const (
	EventSessionStart  = "SESSION_START"
	EventSessionStop   = "SESSION_STOP"
	EventCycleStart    = "CYCLE_START"
	EventCycleEnd      = "CYCLE_END"
	EventTriggerGlitch = "TRIGGER_GLITCH"
	EventReset         = "RESET"
	EventError         = "ERROR"
)

// CycleSummary is a persisted cycle without its samples.
type CycleSummary struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	SessionID   string    `json:"session_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Incomplete  bool      `json:"incomplete"`
	EndReason   string    `json:"end_reason"`
	SampleCount int       `json:"sample_count"`
}

func (r CycleRecord) Summary() CycleSummary {
	return CycleSummary{
		ID:          r.ID,
		Number:      r.Number,
		SessionID:   r.SessionID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Incomplete:  r.Incomplete,
		EndReason:   r.EndReason,
		SampleCount: len(r.Samples),
	}
}

// Operator is an account allowed to start and stop sessions and edit the profile.
type Operator struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// SessionInfo is the persisted header of a monitoring session: the channel
// layout its cycles were recorded with.
type SessionInfo struct {
	ID          string              `json:"id"`
	ProfileName string              `json:"profile_name"`
	Channels    []ChannelDescriptor `json:"channels"`
	StartedAt   time.Time           `json:"started_at"`
	StoppedAt   time.Time           `json:"stopped_at,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Descriptor finds the channel with the given index.
func (s SessionInfo) Descriptor(index int) (ChannelDescriptor, bool) {
	for _, d := range s.Channels {
		if d.Index == index {
			return d, true
		}
	}
	return ChannelDescriptor{}, false
}
