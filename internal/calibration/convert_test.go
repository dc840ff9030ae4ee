package calibration

import (
	"testing"

	"mold_monitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pressure(index int, set string, span float64) mold_monitor.ChannelDescriptor {
	return mold_monitor.ChannelDescriptor{
		Index: index,
		Type:  mold_monitor.ChannelPressure,
		Calibration: mold_monitor.CalibrationParams{
			SetID:     set,
			FullScale: span,
			MaxCode:   DefaultMaxCode,
		},
	}
}

func TestConvert_Temperature(t *testing.T) {
	d := mold_monitor.ChannelDescriptor{
		Type:        mold_monitor.ChannelTemperature,
		Calibration: mold_monitor.CalibrationParams{Scale: 2, Offset: -10},
	}
	assert.Equal(t, 0.0, Convert(5, d))
	assert.Equal(t, 10.0, Convert(10, d))
}

func TestConvert_Pressure_SetA(t *testing.T) {
	got := Convert(5.0, pressure(2, "A", 2000))
	assert.InDelta(t, 2000*5.0/32768, got, 1e-12)
	assert.InDelta(t, 0.305, got, 0.001)
}

func TestConvert_PressureZeroMaxCode(t *testing.T) {
	d := pressure(0, "A", 2000)
	d.Calibration.MaxCode = 0
	assert.Equal(t, 0.0, Convert(100, d))
}

func TestConvert_Trigger(t *testing.T) {
	d := mold_monitor.ChannelDescriptor{
		Type: mold_monitor.ChannelTrigger,
		Calibration: mold_monitor.CalibrationParams{
			ThresholdLow:  0.2 * DefaultMaxCode,
			ThresholdHigh: 0.8 * DefaultMaxCode,
		},
	}
	assert.Equal(t, 0.0, Convert(1000, d))
	assert.Equal(t, 1.0, Convert(30000, d))
	assert.Equal(t, 1.0, Convert(0.5*DefaultMaxCode, d))
	assert.Equal(t, 0.0, Convert(0.5*DefaultMaxCode-1, d))
}

func TestConvert_IsPureAndIndexIndependent(t *testing.T) {
	a := pressure(0, "A", 2000)
	b := pressure(7, "A", 2000)
	for _, raw := range []float64{-3, 0, 1.5, 5, 32767} {
		first := Convert(raw, a)
		assert.Equal(t, first, Convert(raw, a), "convert must be idempotent")
		assert.Equal(t, first, Convert(raw, b), "index must not influence calibration")
	}
}

func TestConvert_DistinctSetsDoNotAlias(t *testing.T) {
	cat := Catalog{}
	require.NoError(t, cat.Add("S0", SensitivitySet(20000, 2.5)))
	require.NoError(t, cat.Add("S1", SensitivitySet(20000, 2.508)))

	s0, err := cat.Resolve("S0")
	require.NoError(t, err)
	s1, err := cat.Resolve("S1")
	require.NoError(t, err)

	d0 := pressure(0, "S0", s0.FullScale)
	d1 := pressure(1, "S1", s1.FullScale)
	assert.NotEqual(t, Convert(1000, d0), Convert(1000, d1))
	assert.InDelta(t, 8000.0, s0.FullScale, 1e-9)
}

func TestCatalog(t *testing.T) {
	cat := Catalog{}
	require.NoError(t, cat.Add(" A ", PressureSet{FullScale: 2000}))

	set, err := cat.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultMaxCode), set.MaxCode)

	_, err = cat.Resolve("B")
	assert.ErrorIs(t, err, ErrUnknownSet)

	assert.ErrorIs(t, cat.Add("C", PressureSet{FullScale: 0}), ErrInvalidSpan)
	assert.ErrorIs(t, cat.Add("D", PressureSet{FullScale: 1, MaxCode: -1}), ErrInvalidMaxCode)
	assert.Error(t, cat.Add("  ", PressureSet{FullScale: 1}))
}

func TestTemperatureScale(t *testing.T) {
	// 10 V range, 100 °C per volt on a 16-bit signed converter.
	assert.InDelta(t, 10.0/32768*100, TemperatureScale(10, 100, 0), 1e-12)
}
