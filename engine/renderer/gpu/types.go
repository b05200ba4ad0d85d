package gpu

// Opaque device object handles. The zero value is the null handle.
type (
	Buffer              uint64
	Image               uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
)

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR32Sfloat
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatR32Uint
	FormatR32Sint
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

// Size is the byte size of one element of the format.
func (f Format) Size() uint32 {
	switch f {
	case FormatR32Sfloat, FormatR32Uint, FormatR32Sint,
		FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb,
		FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb,
		FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatR32G32Sfloat, FormatD32SfloatS8Uint:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat:
		return 16
	}
	return 0
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

type DescriptorType uint32

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeStorageBuffer
	DescriptorTypeCombinedImageSampler
)

func (d DescriptorType) String() string {
	switch d {
	case DescriptorTypeUniformBuffer:
		return "uniform"
	case DescriptorTypeStorageBuffer:
		return "storage"
	case DescriptorTypeCombinedImageSampler:
		return "image"
	}
	return "unknown"
}

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type MemoryKind uint32

const (
	// MemoryHostVisible buffers are mapped once and written directly.
	MemoryHostVisible MemoryKind = iota
	// MemoryDeviceLocal buffers are filled through a staging copy.
	MemoryDeviceLocal
)

type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferDst
	ImageLayoutShaderReadOnly
)

type InputRate uint32

const (
	InputRateVertex InputRate = iota
	InputRateInstance
)

type PolygonMode uint32

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type CullMode uint32

const (
	CullModeNone CullMode = iota
	CullModeBack
)

type PresentStatus uint32

const (
	PresentOK PresentStatus = iota
	PresentSuboptimal
	PresentOutOfDate
)

type BindPoint uint32

const (
	BindPointGraphics BindPoint = iota
	BindPointCompute
)

type PipelineStage uint32

const (
	PipelineStageCompute PipelineStage = iota
	PipelineStageVertexInput
)

type Extent2D struct {
	Width, Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryKind
	Name   string
}

type ImageDesc struct {
	Width, Height uint32
	Format        Format
	Name          string
}

type SamplerDesc struct {
	Linear bool
	Repeat bool
}

type LayoutEntry struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
	Count   uint32
}

type PoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite points one binding of one set at a buffer range or an image.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
	Image   Image
	Sampler Sampler
}

type VertexBinding struct {
	Binding uint32
	Stride  uint32
	Rate    InputRate
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type ShaderStageDesc struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

type GraphicsPipelineDesc struct {
	Layout      PipelineLayout
	Stages      []ShaderStageDesc
	Bindings    []VertexBinding
	Attributes  []VertexAttribute
	Polygon     PolygonMode
	Cull        CullMode
	DepthTest   bool
	Blend       bool
	ColorFormat Format
	DepthFormat Format
	LineWidth   float32
}

type ComputePipelineDesc struct {
	Layout PipelineLayout
	Stage  ShaderStageDesc
}

type SwapchainInfo struct {
	ImageCount  uint32
	ColorFormat Format
	DepthFormat Format
	Extent      Extent2D
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type BufferBarrier struct {
	Buffer Buffer
	Src    PipelineStage
	Dst    PipelineStage
}
