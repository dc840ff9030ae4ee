package acquisition

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold_monitor"
	"mold_monitor/internal/calibration"
)

var start = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func profile() []mold_monitor.ChannelDescriptor {
	set := calibration.SensitivitySet(20000, 2.5)
	return []mold_monitor.ChannelDescriptor{
		{Index: 0, Type: mold_monitor.ChannelTemperature, Calibration: mold_monitor.CalibrationParams{Scale: calibration.TemperatureScale(10, 100, 0)}},
		{Index: 1, Type: mold_monitor.ChannelPressure, Calibration: mold_monitor.CalibrationParams{SetID: "A", FullScale: set.FullScale, MaxCode: set.MaxCode}},
		{Index: 2, Type: mold_monitor.ChannelTrigger, Calibration: mold_monitor.CalibrationParams{ThresholdLow: 0.2 * 32768, ThresholdHigh: 0.8 * 32768}},
	}
}

func TestReplay(t *testing.T) {
	samples := []mold_monitor.RawSample{
		{Timestamp: start, Values: []float64{1}},
		{Timestamp: start.Add(time.Millisecond), Values: []float64{2}},
	}
	r := NewReplay(samples, time.Millisecond, false)
	ctx := context.Background()

	s, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Values[0])
	_, err = r.Next(ctx)
	require.NoError(t, err)
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, r.Close())
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)
	assert.Equal(t, time.Millisecond, r.Period())
}

func TestReplay_PacedHonoursContext(t *testing.T) {
	r := NewReplay([]mold_monitor.RawSample{{Timestamp: start}}, time.Hour, true)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_ShotProfile(t *testing.T) {
	sim, err := NewSimulator(SimulatorConfig{
		Period:    10 * time.Millisecond,
		CycleTime: time.Second,
		ShotTime:  400 * time.Millisecond,
		Start:     start,
	}, profile())
	require.NoError(t, err)
	defer sim.Close()

	descs := profile()
	ctx := context.Background()
	var prev time.Time
	for i := 0; i < 100; i++ {
		s, err := sim.Next(ctx)
		require.NoError(t, err)
		require.Len(t, s.Values, 3)
		if i > 0 {
			assert.True(t, s.Timestamp.After(prev))
		}
		prev = s.Timestamp

		inShot := i < 40
		trig := calibration.Convert(s.Values[2], descs[2])
		temp := calibration.Convert(s.Values[0], descs[0])
		bar := calibration.Convert(s.Values[1], descs[1])
		if inShot {
			assert.Equal(t, 1.0, trig, "sample %d", i)
			assert.GreaterOrEqual(t, temp, DefaultMeltC-1e-6)
		} else {
			assert.Equal(t, 0.0, trig, "sample %d", i)
			assert.InDelta(t, DefaultMeltC, temp, 1e-6)
			assert.InDelta(t, 0, bar, 1e-6)
		}
		if i == 20 {
			assert.InDelta(t, DefaultPeakBar, bar, 1e-6)
		}
	}
	assert.Equal(t, start.Add(990*time.Millisecond), prev)
}

func TestSimulator_Validate(t *testing.T) {
	_, err := NewSimulator(SimulatorConfig{CycleTime: time.Second, ShotTime: 2 * time.Second}, profile())
	assert.Error(t, err)

	_, err = NewSimulator(SimulatorConfig{}, nil)
	assert.Error(t, err)
}

func TestSimulator_Closed(t *testing.T) {
	sim, err := NewSimulator(SimulatorConfig{Start: start}, profile())
	require.NoError(t, err)
	require.NoError(t, sim.Close())
	_, err = sim.Next(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

type fakeReader struct {
	resp *ua.ReadResponse
	err  error
	reqs []*ua.ReadRequest
}

func (f *fakeReader) Read(_ context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func newTestOPCUA(t *testing.T, reader valueReader) *OPCUASource {
	t.Helper()
	src, err := NewOPCUASource(OPCUAConfig{
		Endpoint: "opc.tcp://localhost:4840",
		Period:   time.Millisecond,
		Nodes:    []string{"ns=2;s=Temp1", " ns=2;s=Cavity1 "},
	}, 2, nil)
	require.NoError(t, err)
	src.reader = reader
	return src
}

func TestOPCUASource_Next(t *testing.T) {
	ts := start.Add(5 * time.Millisecond)
	fr := &fakeReader{resp: &ua.ReadResponse{Results: []*ua.DataValue{
		{Status: ua.StatusOK, Value: ua.MustVariant(float32(7537)), SourceTimestamp: start},
		{Status: ua.StatusOK, Value: ua.MustVariant(int16(1200)), SourceTimestamp: ts},
	}}}
	src := newTestOPCUA(t, fr)
	defer src.Close()

	s, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{7537, 1200}, s.Values)
	assert.Equal(t, ts, s.Timestamp, "newest source timestamp wins")

	require.Len(t, fr.reqs, 1)
	require.Len(t, fr.reqs[0].NodesToRead, 2)
	assert.Equal(t, ua.AttributeIDValue, fr.reqs[0].NodesToRead[0].AttributeID)

	// same snapshot again: timestamp is nudged forward
	s2, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, s2.Timestamp.After(s.Timestamp))
}

func TestOPCUASource_Errors(t *testing.T) {
	ctx := context.Background()

	src := newTestOPCUA(t, &fakeReader{err: errors.New("boom")})
	_, err := src.Next(ctx)
	assert.ErrorContains(t, err, "boom")

	src = newTestOPCUA(t, &fakeReader{resp: &ua.ReadResponse{Results: []*ua.DataValue{
		{Status: ua.StatusOK, Value: ua.MustVariant(1.0)},
	}}})
	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "1 results for 2 nodes")

	src = newTestOPCUA(t, &fakeReader{resp: &ua.ReadResponse{Results: []*ua.DataValue{
		{Status: ua.StatusOK, Value: ua.MustVariant(1.0)},
		{Status: ua.StatusBadNodeIDUnknown},
	}}})
	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "Cavity1")

	src = newTestOPCUA(t, &fakeReader{resp: &ua.ReadResponse{Results: []*ua.DataValue{
		{Status: ua.StatusOK, Value: ua.MustVariant(1.0)},
		{Status: ua.StatusOK, Value: ua.MustVariant("text")},
	}}})
	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "unsupported value")

	src = newTestOPCUA(t, nil)
	src.reader = nil
	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "not connected")
	require.NoError(t, src.Close())
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestNewOPCUASource_Validation(t *testing.T) {
	_, err := NewOPCUASource(OPCUAConfig{Nodes: []string{"ns=2;s=A"}}, 1, nil)
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewOPCUASource(OPCUAConfig{Endpoint: "opc.tcp://x:4840", Nodes: []string{"ns=2;s=A"}}, 2, nil)
	assert.ErrorContains(t, err, "1 nodes configured for 2 channels")

	_, err = NewOPCUASource(OPCUAConfig{Endpoint: "opc.tcp://x:4840", Nodes: []string{"ns=abc;zz"}}, 1, nil)
	assert.Error(t, err)
}

func TestVariantToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float32(1.5), 1.5, true},
		{int32(-3), -3, true},
		{uint16(65535), 65535, true},
		{true, 1, true},
		{"x", 0, false},
	}
	for _, c := range cases {
		got, ok := variantToFloat(ua.MustVariant(c.in))
		assert.Equal(t, c.ok, ok, "%T", c.in)
		assert.Equal(t, c.want, got, "%T", c.in)
	}
	_, ok := variantToFloat(nil)
	assert.False(t, ok)
}

func TestNormalizeSecurityMode(t *testing.T) {
	assert.Equal(t, "Sign", normalizeSecurityMode("sign"))
	assert.Equal(t, "SignAndEncrypt", normalizeSecurityMode("sign+encrypt"))
	assert.Equal(t, "None", normalizeSecurityMode(""))
	assert.Equal(t, "Basic256", normalizeSecurityPolicy("Basic256"))
}
