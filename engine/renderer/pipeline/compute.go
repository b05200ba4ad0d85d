package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Compute holds a compute pipeline and its dispatch size.
type Compute struct {
	ctx     *gpu.Context
	handle  gpu.Pipeline
	layout  gpu.PipelineLayout
	groups  [3]uint32
	version uint64
}

func NewCompute(ctx *gpu.Context) *Compute {
	return &Compute{ctx: ctx}
}

func (c *Compute) Build(name string, src metadata.ShaderSource, groups [3]uint32, setLayouts []gpu.DescriptorSetLayout, version uint64) error {
	core.Assert(c.handle == 0, "compute pipeline %s built twice without destroy", name)
	core.Assert(!src.Empty(), "compute pipeline %s is missing shader code", name)
	dev := c.ctx.Pipelines()

	module, err := dev.CreateShaderModule(src.Code)
	if err != nil {
		return core.Fatal(err, fmt.Sprintf("create compute module for %s", name))
	}
	defer dev.DestroyShaderModule(module)

	layout, err := dev.CreatePipelineLayout(setLayouts)
	if err != nil {
		return core.Fatal(err, fmt.Sprintf("create compute layout for %s", name))
	}
	handle, err := dev.CreateComputePipeline(gpu.ComputePipelineDesc{
		Layout: layout,
		Stage:  gpu.ShaderStageDesc{Stage: gpu.ShaderStageCompute, Module: module, Entry: src.EntryPoint()},
	})
	if err != nil {
		dev.DestroyPipelineLayout(layout)
		return core.Fatal(err, fmt.Sprintf("create compute pipeline %s", name))
	}
	c.handle, c.layout, c.groups, c.version = handle, layout, groups, version
	return nil
}

// Dispatch binds the pipeline and set and records one dispatch.
func (c *Compute) Dispatch(cb gpu.CommandBuffer, rec gpu.Recorder, set gpu.DescriptorSet) {
	rec.CmdBindPipeline(cb, gpu.BindPointCompute, c.handle)
	if set != 0 {
		rec.CmdBindDescriptorSets(cb, gpu.BindPointCompute, c.layout, []gpu.DescriptorSet{set})
	}
	rec.CmdDispatch(cb, c.groups[0], c.groups[1], c.groups[2])
}

func (c *Compute) Handle() gpu.Pipeline { return c.handle }
func (c *Compute) Version() uint64      { return c.version }

func (c *Compute) Destroy() {
	dev := c.ctx.Pipelines()
	if c.handle != 0 {
		dev.DestroyPipeline(c.handle)
		c.handle = 0
	}
	if c.layout != 0 {
		dev.DestroyPipelineLayout(c.layout)
		c.layout = 0
	}
}
