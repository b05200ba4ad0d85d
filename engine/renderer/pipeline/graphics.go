package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Config is everything a graphics pipeline is derived from besides the
// descriptor set layouts and the swapchain formats.
type Config struct {
	Name          string
	Vertex        metadata.ShaderSource
	Fragment      metadata.ShaderSource
	Mode          metadata.RenderMode
	CullBackfaces bool
	Blend         bool
	Bindings      []gpu.VertexBinding
	Attributes    []gpu.VertexAttribute
}

// Graphics holds a graphics pipeline, its layout and the parameter version it
// was built from.
type Graphics struct {
	ctx         *gpu.Context
	handle      gpu.Pipeline
	layout      gpu.PipelineLayout
	version     uint64
	colorFormat gpu.Format
	depthFormat gpu.Format
}

func NewGraphics(ctx *gpu.Context) *Graphics {
	return &Graphics{ctx: ctx}
}

func PolygonMode(mode metadata.RenderMode) gpu.PolygonMode {
	switch mode {
	case metadata.RenderModeLines:
		return gpu.PolygonModeLine
	case metadata.RenderModePoints:
		return gpu.PolygonModePoint
	}
	return gpu.PolygonModeFill
}

// Build creates the pipeline. Shader modules live only for the duration of
// the call.
func (g *Graphics) Build(cfg Config, setLayouts []gpu.DescriptorSetLayout, swap gpu.SwapchainInfo, version uint64) error {
	core.Assert(g.handle == 0, "pipeline %s built twice without destroy", cfg.Name)
	core.Assert(!cfg.Vertex.Empty() && !cfg.Fragment.Empty(), "pipeline %s is missing shader code", cfg.Name)
	dev := g.ctx.Pipelines()

	vert, err := dev.CreateShaderModule(cfg.Vertex.Code)
	if err != nil {
		return core.Fatal(err, fmt.Sprintf("create vertex module for %s", cfg.Name))
	}
	defer dev.DestroyShaderModule(vert)
	frag, err := dev.CreateShaderModule(cfg.Fragment.Code)
	if err != nil {
		return core.Fatal(err, fmt.Sprintf("create fragment module for %s", cfg.Name))
	}
	defer dev.DestroyShaderModule(frag)

	layout, err := dev.CreatePipelineLayout(setLayouts)
	if err != nil {
		return core.Fatal(err, fmt.Sprintf("create pipeline layout for %s", cfg.Name))
	}

	cull := gpu.CullModeNone
	if cfg.CullBackfaces {
		cull = gpu.CullModeBack
	}
	handle, err := dev.CreateGraphicsPipeline(gpu.GraphicsPipelineDesc{
		Layout: layout,
		Stages: []gpu.ShaderStageDesc{
			{Stage: gpu.ShaderStageVertex, Module: vert, Entry: cfg.Vertex.EntryPoint()},
			{Stage: gpu.ShaderStageFragment, Module: frag, Entry: cfg.Fragment.EntryPoint()},
		},
		Bindings:    cfg.Bindings,
		Attributes:  cfg.Attributes,
		Polygon:     PolygonMode(cfg.Mode),
		Cull:        cull,
		DepthTest:   true,
		Blend:       cfg.Blend,
		ColorFormat: swap.ColorFormat,
		DepthFormat: swap.DepthFormat,
		LineWidth:   1,
	})
	if err != nil {
		dev.DestroyPipelineLayout(layout)
		return core.Fatal(err, fmt.Sprintf("create graphics pipeline %s", cfg.Name))
	}

	g.handle = handle
	g.layout = layout
	g.version = version
	g.colorFormat = swap.ColorFormat
	g.depthFormat = swap.DepthFormat
	core.LogDebug("pipeline %s built at version %d (%s)", cfg.Name, version, cfg.Mode)
	return nil
}

// NeedsRebuild reports whether version or the swapchain formats moved since
// the last build. The extent is not part of it: viewport and scissor are
// dynamic state.
func (g *Graphics) NeedsRebuild(version uint64, swap gpu.SwapchainInfo) bool {
	return g.handle == 0 ||
		g.version != version ||
		g.colorFormat != swap.ColorFormat ||
		g.depthFormat != swap.DepthFormat
}

// Rebuild tears the pipeline down and builds it again. The order is fixed:
// wait for idle, destroy the pipeline, tear down dependents, derive new set
// layouts and config, build.
func (g *Graphics) Rebuild(version uint64, swap gpu.SwapchainInfo, teardown func(), derive func() (Config, []gpu.DescriptorSetLayout, error)) error {
	if err := g.ctx.Pipelines().WaitIdle(); err != nil {
		return core.Fatal(err, "wait idle before pipeline rebuild")
	}
	g.Destroy()
	if teardown != nil {
		teardown()
	}
	cfg, layouts, err := derive()
	if err != nil {
		return err
	}
	return g.Build(cfg, layouts, swap, version)
}

func (g *Graphics) Bind(cb gpu.CommandBuffer, rec gpu.Recorder) {
	rec.CmdBindPipeline(cb, gpu.BindPointGraphics, g.handle)
}

func (g *Graphics) Handle() gpu.Pipeline       { return g.handle }
func (g *Graphics) Layout() gpu.PipelineLayout { return g.layout }
func (g *Graphics) Version() uint64            { return g.version }

func (g *Graphics) Destroy() {
	dev := g.ctx.Pipelines()
	if g.handle != 0 {
		dev.DestroyPipeline(g.handle)
		g.handle = 0
	}
	if g.layout != 0 {
		dev.DestroyPipelineLayout(g.layout)
		g.layout = 0
	}
}
