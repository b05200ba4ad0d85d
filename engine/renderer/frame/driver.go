package frame

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	// StateInvalidated means the swapchain no longer matches the surface and
	// is being recreated.
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	case StateInvalidated:
		return "invalidated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Surface is the window the swapchain presents to.
type Surface interface {
	FramebufferExtent() gpu.Extent2D
	Resized() bool
	ResetResized()
	// WaitEvents blocks until the window system delivers an event.
	WaitEvents()
}

// Drawable records draw commands inside the render pass.
type Drawable interface {
	Record(cb gpu.CommandBuffer, frame uint32)
}

// ComputeDrawable is a Drawable with work recorded before the render pass.
type ComputeDrawable interface {
	RecordCompute(cb gpu.CommandBuffer, frame uint32)
}

// Overlay records after every drawable, still inside the render pass.
type Overlay interface {
	RecordOverlay(cb gpu.CommandBuffer, frame uint32)
}

// SwapchainListener is told about every recreated swapchain.
type SwapchainListener interface {
	SwapchainRecreated(info gpu.SwapchainInfo) error
}

type Config struct {
	ClearColor [4]float32
}

// Driver runs acquire, record, submit and present for N frames in flight.
// Every per-frame object is indexed by the same cursor.
type Driver struct {
	ctx     *gpu.Context
	surface Surface
	cfg     Config

	state       State
	swapchain   gpu.SwapchainInfo
	current     uint32
	imageIndex  uint32
	frameNumber uint64

	imageAvailable []gpu.Semaphore
	renderFinished []gpu.Semaphore
	inFlight       []gpu.Fence
	commandBuffers []gpu.CommandBuffer
	// imagesInFlight maps a swapchain image to the fence of the frame using it.
	imagesInFlight []gpu.Fence

	drawables []Drawable
	overlay   Overlay
	listeners []SwapchainListener
}

func NewDriver(ctx *gpu.Context, surface Surface, cfg Config) (*Driver, error) {
	d := &Driver{ctx: ctx, surface: surface, cfg: cfg}
	dev := ctx.Frames()

	d.waitForExtent()
	info, err := dev.CreateSwapchain(surface.FramebufferExtent())
	if err != nil {
		return nil, core.Fatal(err, "create swapchain")
	}
	d.swapchain = info
	d.imagesInFlight = make([]gpu.Fence, info.ImageCount)

	n := ctx.FramesInFlight
	for i := uint32(0); i < n; i++ {
		avail, err := dev.CreateSemaphore()
		if err != nil {
			d.Destroy()
			return nil, core.Fatal(err, "create image available semaphore")
		}
		d.imageAvailable = append(d.imageAvailable, avail)

		done, err := dev.CreateSemaphore()
		if err != nil {
			d.Destroy()
			return nil, core.Fatal(err, "create render finished semaphore")
		}
		d.renderFinished = append(d.renderFinished, done)

		// Signaled so the first wait on each frame returns immediately.
		fence, err := dev.CreateFence(true)
		if err != nil {
			d.Destroy()
			return nil, core.Fatal(err, "create in-flight fence")
		}
		d.inFlight = append(d.inFlight, fence)

		cb, err := dev.AllocateCommandBuffer()
		if err != nil {
			d.Destroy()
			return nil, core.Fatal(err, "allocate frame command buffer")
		}
		d.commandBuffers = append(d.commandBuffers, cb)
	}
	core.LogInfo("frame driver ready: %d frames in flight, %d swapchain images, %dx%d",
		n, info.ImageCount, info.Extent.Width, info.Extent.Height)
	return d, nil
}

func (d *Driver) State() State                 { return d.state }
func (d *Driver) CurrentImage() uint32         { return d.current }
func (d *Driver) ImageIndex() uint32           { return d.imageIndex }
func (d *Driver) FrameNumber() uint64          { return d.frameNumber }
func (d *Driver) Swapchain() gpu.SwapchainInfo { return d.swapchain }

func (d *Driver) AddDrawable(dr Drawable) {
	d.drawables = append(d.drawables, dr)
}

func (d *Driver) RemoveDrawable(dr Drawable) {
	for i, x := range d.drawables {
		if x == dr {
			d.drawables = append(d.drawables[:i], d.drawables[i+1:]...)
			return
		}
	}
}

func (d *Driver) SetOverlay(o Overlay) {
	d.overlay = o
}

func (d *Driver) AddSwapchainListener(l SwapchainListener) {
	d.listeners = append(d.listeners, l)
}

// Frame renders and presents one frame. update runs after the image is
// acquired and before recording, with the frame-in-flight index. An out of
// date swapchain is recreated in place and never reported as an error.
func (d *Driver) Frame(update func(frame uint32) error) error {
	core.Assert(d.state == StateIdle, "frame started in state %s", d.state)
	dev := d.ctx.Frames()
	cur := d.current
	fence := d.inFlight[cur]

	d.state = StateAcquiring
	if err := dev.WaitFence(fence, gpu.NoTimeout); err != nil {
		d.state = StateIdle
		return core.Fatal(err, "wait in-flight fence")
	}
	idx, status, err := dev.AcquireNextImage(d.imageAvailable[cur])
	if err != nil {
		d.state = StateIdle
		return core.Fatal(err, "acquire swapchain image")
	}
	if status == gpu.PresentOutOfDate {
		core.LogDebug("swapchain out of date on acquire")
		d.state = StateInvalidated
		return d.recover()
	}

	// A previous frame may still be rendering into this image.
	if prev := d.imagesInFlight[idx]; prev != 0 && prev != fence {
		if err := dev.WaitFence(prev, gpu.NoTimeout); err != nil {
			d.state = StateIdle
			return core.Fatal(err, "wait image fence")
		}
	}
	d.imagesInFlight[idx] = fence
	d.imageIndex = idx

	if update != nil {
		if err := update(cur); err != nil {
			d.state = StateIdle
			return err
		}
	}

	d.state = StateRecording
	cb := d.commandBuffers[cur]
	if err := d.record(cb, cur, idx); err != nil {
		d.state = StateIdle
		return err
	}

	d.state = StateSubmitted
	if err := dev.ResetFence(fence); err != nil {
		d.state = StateIdle
		return core.Fatal(err, "reset in-flight fence")
	}
	if err := dev.Submit(cb, d.imageAvailable[cur], d.renderFinished[cur], fence); err != nil {
		d.state = StateIdle
		return core.Fatal(err, "submit frame")
	}

	d.state = StatePresenting
	status, err = dev.Present(idx, d.renderFinished[cur])
	if err != nil {
		d.state = StateIdle
		return core.Fatal(err, "present frame")
	}
	d.current = (cur + 1) % d.ctx.FramesInFlight
	d.frameNumber++

	if status != gpu.PresentOK || d.surface.Resized() {
		d.state = StateInvalidated
		return d.recover()
	}
	d.state = StateIdle
	return nil
}

func (d *Driver) record(cb gpu.CommandBuffer, cur, idx uint32) error {
	dev := d.ctx.Frames()
	rec := d.ctx.Recorder()
	if err := dev.ResetCommandBuffer(cb); err != nil {
		return core.Fatal(err, "reset frame command buffer")
	}
	if err := dev.BeginCommandBuffer(cb); err != nil {
		return core.Fatal(err, "begin frame command buffer")
	}

	for _, dr := range d.drawables {
		if c, ok := dr.(ComputeDrawable); ok {
			c.RecordCompute(cb, cur)
		}
	}

	rec.CmdBeginRenderPass(cb, idx, gpu.ClearValues{Color: d.cfg.ClearColor, Depth: 1})
	ext := d.swapchain.Extent
	rec.CmdSetViewport(cb, gpu.Viewport{Width: float32(ext.Width), Height: float32(ext.Height), MaxDepth: 1})
	rec.CmdSetScissor(cb, gpu.Rect2D{Extent: ext})
	for _, dr := range d.drawables {
		dr.Record(cb, cur)
	}
	if d.overlay != nil {
		d.overlay.RecordOverlay(cb, cur)
	}
	rec.CmdEndRenderPass(cb)

	if err := dev.EndCommandBuffer(cb); err != nil {
		return core.Fatal(err, "end frame command buffer")
	}
	return nil
}

func (d *Driver) waitForExtent() {
	for d.surface.FramebufferExtent().IsZero() {
		d.surface.WaitEvents()
	}
}

// recover recreates the swapchain for the current surface size and restarts
// the frame cursor.
func (d *Driver) recover() error {
	dev := d.ctx.Frames()
	d.waitForExtent()
	if err := dev.WaitIdle(); err != nil {
		return core.Fatal(err, "wait idle before swapchain recreate")
	}

	dev.DestroySwapchain()
	info, err := dev.CreateSwapchain(d.surface.FramebufferExtent())
	if err != nil {
		return core.Fatal(err, "recreate swapchain")
	}
	d.swapchain = info
	d.imagesInFlight = make([]gpu.Fence, info.ImageCount)
	d.current = 0
	d.surface.ResetResized()
	core.LogInfo("swapchain recreated at %dx%d", info.Extent.Width, info.Extent.Height)

	for _, l := range d.listeners {
		if err := l.SwapchainRecreated(info); err != nil {
			return err
		}
	}
	d.state = StateIdle
	return nil
}

// WaitIdle blocks until the device has finished all submitted frames.
func (d *Driver) WaitIdle() error {
	return d.ctx.Frames().WaitIdle()
}

func (d *Driver) Destroy() {
	dev := d.ctx.Frames()
	if err := dev.WaitIdle(); err != nil {
		core.LogError("wait idle before driver destroy: %v", err)
	}
	for _, cb := range d.commandBuffers {
		dev.FreeCommandBuffer(cb)
	}
	for _, f := range d.inFlight {
		dev.DestroyFence(f)
	}
	for _, s := range d.renderFinished {
		dev.DestroySemaphore(s)
	}
	for _, s := range d.imageAvailable {
		dev.DestroySemaphore(s)
	}
	d.commandBuffers, d.inFlight, d.renderFinished, d.imageAvailable = nil, nil, nil, nil
	if d.swapchain.ImageCount > 0 {
		dev.DestroySwapchain()
		d.swapchain = gpu.SwapchainInfo{}
	}
}
