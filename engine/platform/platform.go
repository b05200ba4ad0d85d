package platform

import (
	"runtime"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. Input and resize callbacks are forwarded to the
// event bus.
type Platform struct {
	Window *glfw.Window

	bus     *core.EventBus
	resized bool
	running atomic.Bool
}

func New(bus *core.EventBus) *Platform {
	return &Platform{bus: bus}
}

func (p *Platform) Startup(applicationName string, x, y int32, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return core.Fatal(err, "initialize glfw")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return core.Fatal(err, "create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.running.Store(true)
	core.LogInfo("window %q created (%dx%d)", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() {
	p.running.Store(false)
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

// GetRequiredExtensionNames lists the instance extensions glfw needs to
// present to this window.
func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// FramebufferExtent is zero while the window is minimized.
func (p *Platform) FramebufferExtent() gpu.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return gpu.Extent2D{}
	}
	return gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) Resized() bool { return p.resized }
func (p *Platform) ResetResized() { p.resized = false }

// WaitEvents blocks until the window receives an event.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

// Wake unblocks WaitEvents. Safe to call from any goroutine.
func (p *Platform) Wake() {
	if p.running.Load() {
		glfw.PostEmptyEvent()
	}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	var ctx core.EventContext
	ctx.Data.U32[0] = uint32(key)
	if action == glfw.Press {
		if key == glfw.KeyEscape {
			p.bus.Fire(core.EventCodeApplicationQuit, p, core.EventContext{})
			return
		}
		p.bus.Fire(core.EventCodeKeyPressed, p, ctx)
		return
	}
	p.bus.Fire(core.EventCodeKeyReleased, p, ctx)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized = true
	var ctx core.EventContext
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	p.bus.Fire(core.EventCodeResized, p, ctx)
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.bus.Fire(core.EventCodeApplicationQuit, p, core.EventContext{})
}
