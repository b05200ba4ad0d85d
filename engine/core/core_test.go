package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[application]
name = "testbed"
`))
	require.NoError(t, err)
	assert.Equal(t, "testbed", cfg.Application.Name)
	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, uint32(720), cfg.Window.Height)
	assert.Equal(t, DefaultFramesInFlight, cfg.Renderer.FramesInFlight)
	assert.Equal(t, "triangles", cfg.Renderer.RenderMode)
	assert.Equal(t, "assets", cfg.Assets.Dir)
}

func TestParseConfigClampsFramesInFlight(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[renderer]
frames_in_flight = 7
render_mode = "LINES"
clear_color = [2.0, -1.0, 0.5, 1.0]
`))
	require.NoError(t, err)
	assert.Equal(t, MaxFramesInFlight, cfg.Renderer.FramesInFlight)
	assert.Equal(t, "lines", cfg.Renderer.RenderMode)
	assert.Equal(t, [4]float32{1, 0, 0.5, 1}, cfg.Renderer.ClearColor)
}

func TestParseConfigRejectsUnknownValues(t *testing.T) {
	_, err := ParseConfig([]byte(`
[renderer]
render_mode = "wireframe"
`))
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`
[log]
level = "chatty"
`))
	assert.Error(t, err)
}

func TestFatalMarksError(t *testing.T) {
	SetLogOutput(&bytes.Buffer{})
	base := errors.New("out of device memory")
	err := Fatal(base, "allocate buffer")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "allocate buffer")
	assert.Nil(t, Fatal(nil, "noop"))
	assert.False(t, IsFatal(base))
}

func TestAssertPanicsWithContractViolation(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "fine") })
	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.True(t, IsContractViolation(r))
	}()
	Assert(false, "binding %d declared twice", 3)
}

func TestRegistryReusesReleasedIDs(t *testing.T) {
	r := NewRegistry[int]()
	a, b := 1, 2
	idA := r.Acquire(&a)
	idB := r.Acquire(&b)
	assert.Equal(t, uint64(1), idA)
	assert.Equal(t, uint64(2), idB)

	v, ok := r.Release(idA)
	require.True(t, ok)
	assert.Equal(t, 1, *v)
	_, ok = r.Get(idA)
	assert.False(t, ok)

	c := 3
	assert.Equal(t, idA, r.Acquire(&c))
	assert.Equal(t, 2, r.Len())

	_, ok = r.Get(0)
	assert.False(t, ok)
}

func TestEventBusStopsAtHandled(t *testing.T) {
	bus := NewEventBus()
	calls := []string{}
	first, second := "first", "second"
	require.True(t, bus.Register(EventCodeApplicationQuit, &first, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls = append(calls, "first")
		return true
	}))
	require.True(t, bus.Register(EventCodeApplicationQuit, &second, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls = append(calls, "second")
		return false
	}))
	SetLogOutput(&bytes.Buffer{})
	assert.False(t, bus.Register(EventCodeApplicationQuit, &first, nil))

	assert.True(t, bus.Fire(EventCodeApplicationQuit, nil, EventContext{}))
	assert.Equal(t, []string{"first"}, calls)

	require.True(t, bus.Unregister(EventCodeApplicationQuit, &first))
	assert.False(t, bus.Fire(EventCodeApplicationQuit, nil, EventContext{}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestClockTicks(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Tick(), "a stopped clock does not move")

	c.Start()
	time.Sleep(5 * time.Millisecond)
	first := c.Tick()
	assert.GreaterOrEqual(t, first, 5*time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	second := c.Tick()
	assert.GreaterOrEqual(t, second, 5*time.Millisecond)
	assert.Equal(t, first+second, c.Elapsed())

	c.Stop()
	assert.False(t, c.Running())
	elapsed := c.Elapsed()
	assert.Zero(t, c.Tick())
	assert.Equal(t, elapsed, c.Elapsed())
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < avgCount; i++ {
		m.Update(10 * time.Millisecond)
	}
	assert.InDelta(t, 10, m.FrameTime(), 1e-9)

	for i := 0; i < 100; i++ {
		m.Update(10 * time.Millisecond)
	}
	fps, ms := m.Frame()
	assert.InDelta(t, 100, fps, 1)
	assert.InDelta(t, 10, ms, 1e-9)
}
