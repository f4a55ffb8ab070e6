package conditions

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thingcode-go/types"
)

const now = int64(1_700_000_000)

type countingSampler struct {
	begins, ends int
	failBegin    bool
}

func (s *countingSampler) Begin() error {
	s.begins++
	if s.failBegin {
		return errors.New("nack")
	}
	return nil
}
func (s *countingSampler) End() error { s.ends++; return nil }

func constant(v float64, reads *int) func() (float64, error) {
	return func() (float64, error) {
		if reads != nil {
			*reads++
		}
		return v, nil
	}
}

func docWith(reported map[string]any, meta map[string]int64) *types.Document {
	d := &types.Document{State: types.Section{Desired: map[string]any{}, Reported: reported}}
	if meta != nil {
		d.Metadata.Reported = map[string]types.Meta{}
		for k, ts := range meta {
			d.Metadata.Reported[k] = types.Meta{Timestamp: ts}
		}
	}
	return d
}

func TestThreshold(t *testing.T) {
	doc := docWith(map[string]any{"batteryVoltage": float64(12000)}, map[string]int64{"batteryVoltage": now - 10})
	cases := []struct {
		sample float64
		emit   bool
	}{
		{12150, false},
		{12250, true},
		{11750, true},
		{12000, false},
	}
	for _, c := range cases {
		r := New(nil)
		r.Register(Condition{Key: "batteryVoltage", Get: constant(c.sample, nil), Threshold: 200, Interval: 1200 * time.Second})
		rep := types.Reported{}
		require.NoError(t, r.Report(doc, now, rep))
		if c.emit {
			assert.Equal(t, int64(c.sample), rep["batteryVoltage"], "sample %v", c.sample)
		} else {
			assert.NotContains(t, rep, "batteryVoltage", "sample %v", c.sample)
		}
	}
}

func TestIntervalForcesReport(t *testing.T) {
	r := New(nil)
	reads := 0
	r.Register(Condition{Key: "temperature", Get: constant(21, &reads), Interval: time.Hour})

	fresh := docWith(map[string]any{"temperature": 21.0}, map[string]int64{"temperature": now - 60})
	rep := types.Reported{}
	require.NoError(t, r.Report(fresh, now, rep))
	assert.Empty(t, rep)
	assert.Zero(t, reads, "not due, not sampled")

	old := docWith(map[string]any{"temperature": 21.0}, map[string]int64{"temperature": now - 3601})
	require.NoError(t, r.Report(old, now, rep))
	assert.Equal(t, int64(21), rep["temperature"])

	noMeta := docWith(map[string]any{"temperature": 21.0}, nil)
	rep = types.Reported{}
	require.NoError(t, r.Report(noMeta, now, rep))
	assert.Contains(t, rep, "temperature")
}

func TestFirstReportAlwaysEmits(t *testing.T) {
	r := New(nil)
	r.Register(Condition{Key: "batteryCurrent", Get: constant(-12.5, nil), Threshold: 1000})
	rep := types.Reported{}
	require.NoError(t, r.Report(docWith(nil, nil), now, rep))
	assert.Equal(t, -12.5, rep["batteryCurrent"])
}

func TestBatchesSamplerSessions(t *testing.T) {
	ina := &countingSampler{}
	lm := &countingSampler{}
	r := New(nil)
	r.Register(Condition{Key: "batteryVoltage", Sampler: ina, Get: constant(12000, nil), Threshold: 200})
	r.Register(Condition{Key: "temperature", Sampler: lm, Get: constant(20, nil), Threshold: 2})
	r.Register(Condition{Key: "batteryCurrent", Sampler: ina, Get: constant(5, nil), Interval: time.Hour})

	rep := types.Reported{}
	require.NoError(t, r.Report(docWith(nil, nil), now, rep))
	assert.Equal(t, 1, ina.begins)
	assert.Equal(t, 1, ina.ends)
	assert.Equal(t, 1, lm.begins)
	assert.Len(t, rep, 3)
}

func TestSamplerFailureSkipsItsConditions(t *testing.T) {
	bad := &countingSampler{failBegin: true}
	r := New(nil)
	r.Register(Condition{Key: "batteryVoltage", Sampler: bad, Get: constant(1, nil), Threshold: 1})
	r.Register(Condition{Key: "uptime", Get: constant(3, nil)})

	rep := types.Reported{}
	err := r.Report(docWith(nil, nil), now, rep)
	require.Error(t, err)
	assert.NotContains(t, rep, "batteryVoltage")
	assert.Equal(t, int64(3), rep["uptime"])
	assert.Zero(t, bad.ends)
}
