package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// CreateShaderModule wraps SPIR-V code. The length must be a multiple of four.
func (b *Backend) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("shader code of %d bytes is not SPIR-V", len(code))
	}
	// Copy into words so the data is aligned for the driver.
	words := make([]uint32, len(code)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)), code)

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(b.device.LogicalDevice, &createInfo, b.allocator, &module), "vkCreateShaderModule"); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(b.objects.modules.Acquire(&module)), nil
}

func (b *Backend) DestroyShaderModule(h gpu.ShaderModule) {
	module, ok := b.objects.modules.Release(uint64(h))
	core.Assert(ok, "unknown shader module handle %d", h)
	vk.DestroyShaderModule(b.device.LogicalDevice, *module, b.allocator)
}

func (b *Backend) CreatePipelineLayout(sets []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		layouts[i] = *lookup(b.objects.setLayouts, uint64(s), "descriptor set layout")
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}
	var layout vk.PipelineLayout
	if err := check(vk.CreatePipelineLayout(b.device.LogicalDevice, &pipelineLayoutCreateInfo, b.allocator, &layout), "vkCreatePipelineLayout"); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(b.objects.pipelineLayouts.Acquire(&layout)), nil
}

func (b *Backend) DestroyPipelineLayout(h gpu.PipelineLayout) {
	layout, ok := b.objects.pipelineLayouts.Release(uint64(h))
	core.Assert(ok, "unknown pipeline layout handle %d", h)
	vk.DestroyPipelineLayout(b.device.LogicalDevice, *layout, b.allocator)
}

func (b *Backend) shaderStage(s gpu.ShaderStageDesc) vk.PipelineShaderStageCreateInfo {
	entry := s.Entry
	if entry == "" {
		entry = "main"
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFlagBits(vkStages(s.Stage)),
		Module: *lookup(b.objects.modules, uint64(s.Module), "shader module"),
		PName:  VulkanSafeString(entry),
	}
}

func (b *Backend) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	core.Assert(b.renderpass != nil, "graphics pipeline created before the swapchain")
	if desc.ColorFormat != gpu.FormatUndefined && vkFormat(desc.ColorFormat) != b.swapchain.ImageFormat.Format {
		return 0, errors.Newf("pipeline color format %d does not match the swapchain", desc.ColorFormat)
	}

	// Viewport and scissor are dynamic. Counts are still required.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	lineWidth := desc.LineWidth
	if lineWidth <= 0 || b.device.Features.WideLines != vk.True {
		lineWidth = 1.0
	}
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vkPolygonMode(desc.Polygon),
		LineWidth:               lineWidth,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if desc.Cull == gpu.CullModeBack {
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}
	if desc.Polygon != gpu.PolygonModeFill && b.device.Features.FillModeNonSolid != vk.True {
		core.LogWarn("device lacks fillModeNonSolid, drawing filled polygons")
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeFill
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
		depthStencil.DepthBoundsTestEnable = vk.False
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if desc.Blend {
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindings := make([]vk.VertexInputBindingDescription, len(desc.Bindings))
	for i, vb := range desc.Bindings {
		rate := vk.VertexInputRateVertex // Move to next data entry for each vertex.
		if vb.Rate == gpu.InputRateInstance {
			rate = vk.VertexInputRateInstance
		}
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   vb.Binding,
			Stride:    vb.Stride,
			InputRate: rate,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
	for i, a := range desc.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Stages))
	for i, s := range desc.Stages {
		stages[i] = b.shaderStage(s)
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              *lookup(b.objects.pipelineLayouts, uint64(desc.Layout), "pipeline layout"),
		RenderPass:          b.renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(b.device.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, b.allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		return 0, err
	}
	core.LogDebug("graphics pipeline created")
	return gpu.Pipeline(b.objects.pipelines.Acquire(&pipelines[0])), nil
}

func (b *Backend) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	cfg := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Layout: *lookup(b.objects.pipelineLayouts, uint64(desc.Layout), "pipeline layout"),
		Stage:  b.shaderStage(desc.Stage),
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateComputePipelines(b.device.LogicalDevice, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{cfg}, b.allocator, pipelines), "vkCreateComputePipelines"); err != nil {
		return 0, err
	}
	core.LogDebug("compute pipeline created")
	return gpu.Pipeline(b.objects.pipelines.Acquire(&pipelines[0])), nil
}

func (b *Backend) DestroyPipeline(h gpu.Pipeline) {
	p, ok := b.objects.pipelines.Release(uint64(h))
	core.Assert(ok, "unknown pipeline handle %d", h)
	vk.DestroyPipeline(b.device.LogicalDevice, *p, b.allocator)
}
