package gpu

import "github.com/spaghettifunk/prism/engine/core"

// Context is passed explicitly to every constructor that touches the device.
type Context struct {
	device         Device
	FramesInFlight uint32
}

func NewContext(device Device, framesInFlight uint32) *Context {
	core.Assert(device != nil, "gpu context requires a device")
	core.Assert(framesInFlight >= 1 && framesInFlight <= core.MaxFramesInFlight,
		"frames in flight must be in 1..%d, got %d", core.MaxFramesInFlight, framesInFlight)
	return &Context{device: device, FramesInFlight: framesInFlight}
}

func (c *Context) Memory() MemoryDevice      { return c.device }
func (c *Context) Transfer() TransferDevice  { return c.device }
func (c *Context) Bindings() BindingDevice   { return c.device }
func (c *Context) Pipelines() PipelineDevice { return c.device }
func (c *Context) Frames() FrameDevice       { return c.device }
func (c *Context) Recorder() Recorder        { return c.device }
