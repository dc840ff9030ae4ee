// Package channel holds the ordered set of configured sensor channels.
//
// Every component that needs "the calibration for channel i" asks the Registry;
// nothing recomputes calibration from the position of a channel among channels
// of the same type.
package channel

import (
	"sort"
	"sync"

	"mold_monitor"
	"mold_monitor/internal/calibration"
)

// Registry is safe for concurrent reads. Configure is rejected once frozen.
type Registry struct {
	mu      sync.RWMutex
	catalog calibration.Catalog
	descs   []mold_monitor.ChannelDescriptor
	trigger int
	frozen  bool
}

func NewRegistry(catalog calibration.Catalog) *Registry {
	if catalog == nil {
		catalog = calibration.Catalog{}
	}
	return &Registry{catalog: catalog, trigger: -1}
}

// Configure validates the descriptors, resolves pressure calibration sets and
// replaces the current configuration. On error the registry is left unchanged.
func (r *Registry) Configure(descs []mold_monitor.ChannelDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return configErr(-1, "registry is frozen while a session runs", nil)
	}
	if len(descs) == 0 {
		return configErr(-1, "at least one channel is required", nil)
	}

	out := make([]mold_monitor.ChannelDescriptor, len(descs))
	copy(out, descs)

	seen := make(map[int]struct{}, len(out))
	trigger := -1
	for i := range out {
		d := &out[i]
		if _, dup := seen[d.Index]; dup {
			return configErr(d.Index, "duplicate channel index", nil)
		}
		seen[d.Index] = struct{}{}

		if err := r.resolve(d); err != nil {
			return err
		}
		if d.Type == mold_monitor.ChannelTrigger {
			if trigger >= 0 {
				return configErr(d.Index, "only one dedicated trigger channel is allowed", nil)
			}
			trigger = d.Index
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for pos, d := range out {
		if d.Index != pos {
			return configErr(d.Index, "channel indices must be contiguous from 0", nil)
		}
	}

	r.descs = out
	r.trigger = trigger
	return nil
}

// resolve checks type-specific parameters and attaches the pressure span.
func (r *Registry) resolve(d *mold_monitor.ChannelDescriptor) error {
	switch d.Type {
	case mold_monitor.ChannelTemperature:
		if d.Calibration.Scale == 0 {
			return configErr(d.Index, "temperature scale must be non-zero", nil)
		}
	case mold_monitor.ChannelPressure:
		if d.Calibration.SetID == "" {
			return configErr(d.Index, "pressure channel requires a calibration set id", nil)
		}
		set, err := r.catalog.Resolve(d.Calibration.SetID)
		if err != nil {
			return configErr(d.Index, "cannot resolve calibration set", err)
		}
		d.Calibration.FullScale = set.FullScale
		d.Calibration.MaxCode = set.MaxCode
	case mold_monitor.ChannelTrigger:
		c := d.Calibration
		if c.ThresholdHigh <= c.ThresholdLow {
			return configErr(d.Index, "trigger threshold_high must exceed threshold_low", nil)
		}
	default:
		return configErr(d.Index, "unknown channel type "+string(d.Type), nil)
	}
	return nil
}

// Get returns the descriptor with the given index.
func (r *Registry) Get(index int) (mold_monitor.ChannelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.descs) {
		return mold_monitor.ChannelDescriptor{}, false
	}
	return r.descs[index], true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descs)
}

// Descriptors returns a copy ordered by index.
func (r *Registry) Descriptors() []mold_monitor.ChannelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mold_monitor.ChannelDescriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// TriggerIndex reports the dedicated trigger channel, if one is configured.
func (r *Registry) TriggerIndex() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trigger, r.trigger >= 0
}

// Freeze makes the configuration immutable for the lifetime of a session.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
