package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thingcode-go/errcode"
)

func TestApplyUpdate(t *testing.T) {
	d := &Document{State: Section{Desired: map[string]any{"sleep": 300.0, "position": "open"}}}

	u, err := DecodeUpdate([]byte(`{"state":{"reported":{"position":"open","batteryVoltage":12000}},"clientToken":"c1"}`))
	require.NoError(t, err)
	d.ApplyUpdate(u, 100)

	assert.Equal(t, int64(1), d.Version)
	assert.Equal(t, "open", d.State.Reported["position"])
	ts, ok := d.ReportedTimestamp("batteryVoltage")
	assert.True(t, ok)
	assert.Equal(t, int64(100), ts)
	assert.Equal(t, "c1", d.ClientToken)
	assert.Equal(t, map[string]any{"sleep": 300.0}, d.Delta())

	u, err = DecodeUpdate([]byte(`{"state":{"desired":{"position":null,"sleep":60}}}`))
	require.NoError(t, err)
	d.ApplyUpdate(u, 200)
	assert.NotContains(t, d.State.Desired, "position")
	assert.Equal(t, int64(200), d.DesiredTimestamp("sleep"))
	assert.Equal(t, int64(2), d.Version)
}

func TestDecodeUpdateRejectsEmpty(t *testing.T) {
	_, err := DecodeUpdate([]byte(`{"state":{}}`))
	assert.Equal(t, errcode.Malformed, errcode.Of(err))
	_, err = DecodeUpdate([]byte(`nope`))
	assert.Equal(t, errcode.Malformed, errcode.Of(err))
}

func TestCloneIsIndependent(t *testing.T) {
	d := &Document{State: Section{Desired: map[string]any{"a": 1.0}}, Version: 3}
	c := d.Clone()
	c.State.Desired["a"] = 2.0
	assert.Equal(t, 1.0, d.State.Desired["a"])
	assert.Equal(t, int64(3), c.Version)
}
