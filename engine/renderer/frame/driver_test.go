package frame

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
)

type recordingDrawable struct {
	rec     gpu.Recorder
	frames  []uint32
	compute []uint32
}

func (r *recordingDrawable) Record(cb gpu.CommandBuffer, frame uint32) {
	r.frames = append(r.frames, frame)
	r.rec.CmdDrawIndexed(cb, 36, 1)
}

func (r *recordingDrawable) RecordCompute(cb gpu.CommandBuffer, frame uint32) {
	r.compute = append(r.compute, frame)
	r.rec.CmdDispatch(cb, 1, 1, 1)
}

type overlay struct{ rec gpu.Recorder }

func (o overlay) RecordOverlay(cb gpu.CommandBuffer, frame uint32) {
	o.rec.CmdDrawIndexed(cb, 6, 1)
}

type listener struct{ infos []gpu.SwapchainInfo }

func (l *listener) SwapchainRecreated(info gpu.SwapchainInfo) error {
	l.infos = append(l.infos, info)
	return nil
}

func newDriver(t *testing.T, frames uint32) (*Driver, *gputest.Device, *gputest.Surface) {
	t.Helper()
	gputest.CaptureLog(t)
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(1280, 720)
	d, err := NewDriver(gpu.NewContext(dev, frames), surface, Config{ClearColor: [4]float32{0, 0, 0, 1}})
	require.NoError(t, err)
	return d, dev, surface
}

func TestFrameAlignment(t *testing.T) {
	d, dev, _ := newDriver(t, 2)
	dr := &recordingDrawable{rec: dev}
	d.AddDrawable(dr)

	var updates []uint32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Frame(func(frame uint32) error {
			updates = append(updates, frame)
			return nil
		}))
		assert.Equal(t, StateIdle, d.State())
	}

	assert.Equal(t, []uint32{0, 1, 0, 1, 0}, updates)
	assert.Equal(t, updates, dr.frames)
	require.Len(t, dev.Submissions, 5)
	for i, s := range dev.Submissions {
		f := uint32(i) % 2
		assert.Equal(t, d.commandBuffers[f], s.CommandBuffer, "frame %d command buffer", i)
		assert.Equal(t, d.inFlight[f], s.Fence)
		assert.Equal(t, d.imageAvailable[f], s.Wait)
		assert.Equal(t, d.renderFinished[f], s.Signal)
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1}, dev.Presents)
	assert.Equal(t, uint64(5), d.FrameNumber())
	assert.Equal(t, uint32(1), d.CurrentImage())
	assert.Empty(t, dev.Violations)
}

func TestFenceOrdering(t *testing.T) {
	d, dev, _ := newDriver(t, 2)
	dev.Calls = nil
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Frame(nil))
	}

	var seq []string
	for _, c := range dev.Calls {
		switch c {
		case "WaitFence", "AcquireNextImage", "ResetFence", "Submit", "Present":
			seq = append(seq, c)
		}
	}
	// The third frame reuses frame 0's fence and waits on it again; image 2
	// is fresh so there is no extra image wait.
	frame := []string{"WaitFence", "AcquireNextImage", "ResetFence", "Submit", "Present"}
	want := append(append(append([]string{}, frame...), frame...), frame...)
	assert.Equal(t, want, seq)
	assert.Empty(t, dev.Violations)
}

func TestRecordOrder(t *testing.T) {
	d, dev, _ := newDriver(t, 2)
	dr := &recordingDrawable{rec: dev}
	d.AddDrawable(dr)
	d.SetOverlay(overlay{rec: dev})
	require.NoError(t, d.Frame(nil))

	var ops []string
	for _, c := range dev.Submissions[0].Commands {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{
		"Dispatch", "BeginRenderPass", "SetViewport", "SetScissor", "DrawIndexed", "DrawIndexed", "EndRenderPass",
	}, ops)
	assert.Equal(t, uint32(36), dev.Submissions[0].Commands[4].Counts[0])
	assert.Equal(t, uint32(6), dev.Submissions[0].Commands[5].Counts[0])
	assert.Equal(t, []uint32{0}, dr.compute)

	d.RemoveDrawable(dr)
	require.NoError(t, d.Frame(nil))
	assert.Len(t, dr.frames, 1)
}

func TestOutOfDateAcquireDoesNotConsumeFrame(t *testing.T) {
	d, dev, _ := newDriver(t, 2)
	l := &listener{}
	d.AddSwapchainListener(l)
	require.NoError(t, d.Frame(nil))

	dev.AcquireResults = []gputest.AcquireResult{{Status: gpu.PresentOutOfDate}}
	called := false
	require.NoError(t, d.Frame(func(uint32) error {
		called = true
		return nil
	}))

	assert.False(t, called)
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, uint64(1), d.FrameNumber())
	assert.Len(t, dev.Submissions, 1)
	assert.Equal(t, 2, dev.SwapchainCreates)
	assert.Len(t, l.infos, 1)
	assert.Equal(t, uint32(0), d.CurrentImage())

	require.NoError(t, d.Frame(nil))
	assert.Len(t, dev.Submissions, 2)
	assert.Empty(t, dev.Violations)
}

func TestResizeRecovery(t *testing.T) {
	d, dev, surface := newDriver(t, 2)
	require.NoError(t, d.Frame(nil))
	require.Equal(t, uint32(1), d.CurrentImage())

	surface.Resize(gpu.Extent2D{}, gpu.Extent2D{Width: 800, Height: 600})
	require.NoError(t, d.Frame(nil))

	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, uint32(0), d.CurrentImage())
	assert.Equal(t, 1, surface.WaitCalls, "blocked while minimized")
	assert.False(t, surface.Resized())
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, d.Swapchain().Extent)
	assert.Equal(t, int(dev.ImageCount), dev.LiveViews, "old image views released")

	submitted := len(dev.Submissions)
	require.NoError(t, d.Frame(nil))
	assert.Len(t, dev.Submissions, submitted+1)
	assert.Equal(t, StateIdle, d.State())
	assert.Empty(t, dev.Violations)
}

func TestSuboptimalPresentRecreates(t *testing.T) {
	d, dev, _ := newDriver(t, 3)
	l := &listener{}
	d.AddSwapchainListener(l)
	dev.PresentResults = []gputest.PresentResult{{Status: gpu.PresentSuboptimal}}

	require.NoError(t, d.Frame(nil))
	assert.Equal(t, uint64(1), d.FrameNumber())
	assert.Equal(t, uint32(0), d.CurrentImage())
	require.Len(t, l.infos, 1)
	assert.Equal(t, 2, dev.SwapchainCreates)
	assert.Empty(t, dev.Violations)
}

func TestUpdateErrorPropagates(t *testing.T) {
	d, _, _ := newDriver(t, 2)
	boom := errors.New("update failed")
	err := d.Frame(func(uint32) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, d.State())
}

func TestDeviceFailureIsFatal(t *testing.T) {
	d, dev, _ := newDriver(t, 2)
	dev.FailNext["Submit"] = errors.New("device lost")
	err := d.Frame(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit frame")
}

func TestMinimizedAtStartWaits(t *testing.T) {
	gputest.CaptureLog(t)
	dev := gputest.NewDevice()
	surface := &gputest.Surface{Extents: []gpu.Extent2D{{}, {}, {Width: 640, Height: 480}}}
	d, err := NewDriver(gpu.NewContext(dev, 2), surface, Config{})
	require.NoError(t, err)
	assert.Equal(t, 2, surface.WaitCalls)
	assert.Equal(t, uint32(640), d.Swapchain().Extent.Width)
}

func TestDestroyReleasesEverything(t *testing.T) {
	d, dev, _ := newDriver(t, 3)
	require.NoError(t, d.Frame(nil))
	d.Destroy()

	assert.Empty(t, dev.Fences)
	assert.Empty(t, dev.Semaphores)
	assert.Empty(t, dev.CommandBuffers)
	assert.Nil(t, dev.Swapchain)
	assert.Zero(t, dev.LiveViews)
	assert.Empty(t, dev.Violations)
}
