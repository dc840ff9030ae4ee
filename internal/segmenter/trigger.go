package segmenter

import (
	"errors"
	"fmt"

	"mold_monitor"
)

// TriggerSource extracts the trigger level for one tick.
type TriggerSource interface {
	Level(raw mold_monitor.RawSample, conv mold_monitor.ConvertedSample) (float64, error)
	String() string
}

// DedicatedTrigger reads the raw code of a physically separate trigger input
// (the inductive proximity sensor on the mold).
type DedicatedTrigger struct {
	Index int
}

func (d DedicatedTrigger) Level(raw mold_monitor.RawSample, _ mold_monitor.ConvertedSample) (float64, error) {
	if d.Index < 0 || d.Index >= len(raw.Values) {
		return 0, fmt.Errorf("dedicated trigger: channel %d not in sample of %d values", d.Index, len(raw.Values))
	}
	return raw.Values[d.Index], nil
}

func (d DedicatedTrigger) String() string { return fmt.Sprintf("dedicated(ch%d)", d.Index) }

// ChannelThreshold applies the threshold policy to the converted value of a
// monitored channel, e.g. cavity pressure rising above a few bar.
type ChannelThreshold struct {
	Index int
}

func (c ChannelThreshold) Level(_ mold_monitor.RawSample, conv mold_monitor.ConvertedSample) (float64, error) {
	v, ok := conv.Values[c.Index]
	if !ok {
		return 0, fmt.Errorf("threshold trigger: channel %d missing from converted sample", c.Index)
	}
	return v, nil
}

func (c ChannelThreshold) String() string { return fmt.Sprintf("threshold(ch%d)", c.Index) }

// Policy selects the trigger when building a session.
// Channel < 0 means "use the dedicated trigger channel".
type Policy struct {
	Channel int
	Low     float64
	High    float64
}

var ErrNoTrigger = errors.New("segmenter: no dedicated trigger channel and no threshold channel configured")

// Registry is the read side of channel.Registry.
type Registry interface {
	Count() int
	Get(index int) (mold_monitor.ChannelDescriptor, bool)
	TriggerIndex() (int, bool)
}

// Resolve picks the trigger source and its hysteresis band. A dedicated trigger
// channel uses the thresholds on its descriptor; a threshold policy uses the
// band from p. No channel type is assumed to be present.
func Resolve(reg Registry, p Policy) (TriggerSource, float64, float64, error) {
	if p.Channel < 0 {
		idx, ok := reg.TriggerIndex()
		if !ok {
			return nil, 0, 0, ErrNoTrigger
		}
		d, _ := reg.Get(idx)
		return DedicatedTrigger{Index: idx}, d.Calibration.ThresholdLow, d.Calibration.ThresholdHigh, nil
	}

	d, ok := reg.Get(p.Channel)
	if !ok {
		return nil, 0, 0, fmt.Errorf("segmenter: trigger channel %d is not configured", p.Channel)
	}
	if p.High <= p.Low {
		return nil, 0, 0, ErrInvalidBand
	}
	if d.Type == mold_monitor.ChannelTrigger {
		return DedicatedTrigger{Index: d.Index}, p.Low, p.High, nil
	}
	return ChannelThreshold{Index: d.Index}, p.Low, p.High, nil
}
