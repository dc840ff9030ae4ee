// Package align turns raw DAQ tuples into converted samples keyed by channel index.
package align

import (
	"errors"
	"fmt"

	"mold_monitor"
	"mold_monitor/internal/calibration"
)

// ErrorKind classifies alignment failures.
type ErrorKind int

const (
	ChannelCountMismatch ErrorKind = iota + 1
	UnknownChannel
)

func (k ErrorKind) String() string {
	switch k {
	case ChannelCountMismatch:
		return "channel count mismatch"
	case UnknownChannel:
		return "unknown channel"
	default:
		return "alignment error"
	}
}

var ErrChannelCountMismatch = errors.New("raw sample channel count does not match configuration")

// AlignmentError is fatal for the session: the DAQ and the configuration disagree.
type AlignmentError struct {
	Kind     ErrorKind
	Expected int
	Got      int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("align: %s: expected %d values, got %d", e.Kind, e.Expected, e.Got)
}

func (e *AlignmentError) Is(target error) bool {
	return e.Kind == ChannelCountMismatch && target == ErrChannelCountMismatch
}

// Registry is the read side of channel.Registry.
type Registry interface {
	Count() int
	Get(index int) (mold_monitor.ChannelDescriptor, bool)
}

// Align converts every value of raw with the descriptor of the same index.
// A shape mismatch is reported, never truncated or padded.
func Align(raw mold_monitor.RawSample, reg Registry) (mold_monitor.ConvertedSample, error) {
	n := reg.Count()
	if len(raw.Values) != n {
		return mold_monitor.ConvertedSample{}, &AlignmentError{Kind: ChannelCountMismatch, Expected: n, Got: len(raw.Values)}
	}

	out := mold_monitor.ConvertedSample{
		Timestamp: raw.Timestamp,
		Values:    make(map[int]float64, n),
	}
	for i, v := range raw.Values {
		d, ok := reg.Get(i)
		if !ok {
			return mold_monitor.ConvertedSample{}, &AlignmentError{Kind: UnknownChannel, Expected: n, Got: i}
		}
		out.Values[d.Index] = calibration.Convert(v, d)
	}
	return out, nil
}
