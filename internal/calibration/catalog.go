package calibration

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxCode is the positive full-scale code of a signed 16-bit converter.
const DefaultMaxCode = 1 << 15

var (
	ErrUnknownSet     = errors.New("unknown calibration set")
	ErrInvalidSpan    = errors.New("calibration set full scale must be > 0")
	ErrInvalidMaxCode = errors.New("calibration set max code must be > 0")
)

// PressureSet is the rated span of one physical pressure sensor.
type PressureSet struct {
	FullScale float64 `json:"full_scale" yaml:"full_scale"` // bar at MaxCode
	MaxCode   float64 `json:"max_code" yaml:"max_code"`
}

// Catalog resolves calibration-set identifiers to pressure spans.
type Catalog map[string]PressureSet

func normalizeSetID(id string) string {
	return strings.TrimSpace(id)
}

// Add registers a set, defaulting MaxCode to a 16-bit converter.
func (c Catalog) Add(id string, set PressureSet) error {
	id = normalizeSetID(id)
	if id == "" {
		return errors.New("calibration set id is empty")
	}
	if set.MaxCode == 0 {
		set.MaxCode = DefaultMaxCode
	}
	if set.FullScale <= 0 {
		return fmt.Errorf("set %q: %w", id, ErrInvalidSpan)
	}
	if set.MaxCode < 0 {
		return fmt.Errorf("set %q: %w", id, ErrInvalidMaxCode)
	}
	c[id] = set
	return nil
}

// Resolve looks a set up by id. The lookup never depends on channel order.
func (c Catalog) Resolve(id string) (PressureSet, error) {
	set, ok := c[normalizeSetID(id)]
	if !ok {
		return PressureSet{}, fmt.Errorf("%w: %q", ErrUnknownSet, id)
	}
	return set, nil
}

// SensitivitySet builds a set from a charge-amplifier chain: a sensor with the
// given sensitivity (pC/bar) on an amplifier whose range is qmax (pC) at full code.
func SensitivitySet(qmax, sensitivity float64) PressureSet {
	return PressureSet{FullScale: qmax / sensitivity, MaxCode: DefaultMaxCode}
}
