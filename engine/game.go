package engine

import (
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// Game is the application plugged into the engine. Every hook is optional.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once the window, device and frame driver exist. Renderers
// are added from here through Engine.AddRenderer.
type Initialize func(e *Engine) error

// Update runs every frame before the renderers fill their slots.
type Update func(fc *resource.FrameContext) error

type OnResize func(width uint32, height uint32) error
type Shutdown func() error
