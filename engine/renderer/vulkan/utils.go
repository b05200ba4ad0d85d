package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func VulkanResultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	}
	return "VK_RESULT_UNRECOGNIZED"
}

// check turns a failing result into an error naming the call.
func check(result vk.Result, call string) error {
	if result == vk.Success {
		return nil
	}
	return errors.Newf("%s failed with %s", call, VulkanResultString(result))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

func vkFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatR32Sfloat:
		return vk.FormatR32Sfloat
	case gpu.FormatR32G32Sfloat:
		return vk.FormatR32g32Sfloat
	case gpu.FormatR32G32B32Sfloat:
		return vk.FormatR32g32b32Sfloat
	case gpu.FormatR32G32B32A32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.FormatR32Uint:
		return vk.FormatR32Uint
	case gpu.FormatR32Sint:
		return vk.FormatR32Sint
	case gpu.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatR8G8B8A8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case gpu.FormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	case gpu.FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	}
	return vk.FormatUndefined
}

func gpuFormat(f vk.Format) gpu.Format {
	for _, g := range []gpu.Format{
		gpu.FormatB8G8R8A8Srgb, gpu.FormatB8G8R8A8Unorm,
		gpu.FormatR8G8B8A8Srgb, gpu.FormatR8G8B8A8Unorm,
		gpu.FormatD32Sfloat, gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint,
	} {
		if vkFormat(g) == f {
			return g
		}
	}
	return gpu.FormatUndefined
}

func vkStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&gpu.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

func vkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func vkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}

func vkBindPoint(p gpu.BindPoint) vk.PipelineBindPoint {
	if p == gpu.BindPointCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

func vkPolygonMode(m gpu.PolygonMode) vk.PolygonMode {
	switch m {
	case gpu.PolygonModeLine:
		return vk.PolygonModeLine
	case gpu.PolygonModePoint:
		return vk.PolygonModePoint
	}
	return vk.PolygonModeFill
}

func vkImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	}
	return vk.ImageLayoutUndefined
}

func vkPipelineStage(s gpu.PipelineStage) (vk.PipelineStageFlags, vk.AccessFlags) {
	if s == gpu.PipelineStageVertexInput {
		return vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit)
	}
	return vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.AccessFlags(vk.AccessShaderWriteBit)
}
