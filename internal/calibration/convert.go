// Package calibration converts raw DAQ readings into physical units.
package calibration

import (
	"mold_monitor"
)

// Convert maps one raw reading to a physical value using only the descriptor's
// own calibration. It is pure: no lookups by position, no shared state.
func Convert(raw float64, d mold_monitor.ChannelDescriptor) float64 {
	c := d.Calibration
	switch d.Type {
	case mold_monitor.ChannelTemperature:
		return raw*c.Scale + c.Offset
	case mold_monitor.ChannelPressure:
		if c.MaxCode == 0 {
			return 0
		}
		return raw * (c.FullScale / c.MaxCode)
	case mold_monitor.ChannelTrigger:
		if raw >= (c.ThresholdLow+c.ThresholdHigh)/2 {
			return 1
		}
		return 0
	default:
		return raw
	}
}

// TemperatureScale is the per-code scale of a thermocouple amplifier that outputs
// unitsPerVolt on a DAQ input with the given voltage range and max code.
func TemperatureScale(voltageRange, unitsPerVolt, maxCode float64) float64 {
	if maxCode == 0 {
		maxCode = DefaultMaxCode
	}
	return voltageRange / maxCode * unitsPerVolt
}
