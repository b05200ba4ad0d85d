package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

var _ gpu.Device = (*Backend)(nil)

// Backend is the Vulkan implementation of gpu.Device for one window.
type Backend struct {
	platform *platform.Platform

	instance      vk.Instance
	allocator     *vk.AllocationCallbacks
	surface       vk.Surface
	debugCallback vk.DebugReportCallback
	validation    bool

	device       *VulkanDevice
	swapchain    *VulkanSwapchain
	renderpass   *VulkanRenderpass
	framebuffers []*VulkanFramebuffer

	objects objects
	locks   *VulkanLockPool
}

func New(p *platform.Platform, validation bool) *Backend {
	return &Backend{
		platform:   p,
		validation: validation,
		device: &VulkanDevice{
			GraphicsQueueIndex: -1,
			PresentQueueIndex:  -1,
			TransferQueueIndex: -1,
		},
		objects: newObjects(),
		locks:   NewVulkanLockPool(),
	}
}

// Initialize creates the instance, surface, logical device and graphics
// command pool. The swapchain is created later through CreateSwapchain.
func (b *Backend) Initialize(appName string) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return core.Fatalf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return core.Fatal(err, "initialize vulkan loader")
	}

	if err := b.createInstance(appName); err != nil {
		return core.Fatal(err, "create vulkan instance")
	}

	// Debugger
	if b.validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check(vk.CreateDebugReportCallback(b.instance, &debugCreateInfo, b.allocator, &dbg), "vkCreateDebugReportCallbackEXT"); err != nil {
			return core.Fatal(err, "create debug callback")
		}
		b.debugCallback = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.platform.Window.CreateWindowSurface(b.instance, nil)
	if err != nil {
		return core.Fatal(err, "create window surface")
	}
	b.surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := b.deviceCreate(); err != nil {
		return core.Fatal(err, "create device")
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

func (b *Backend) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Prism"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := b.platform.GetRequiredExtensionNames()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if b.validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("required instance extensions: %v", requiredExtensions)
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	var layers []string
	if b.validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := requireLayers(layers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := check(vk.CreateInstance(&createInfo, b.allocator, &b.instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(b.instance); err != nil {
		return errors.Wrap(err, "load instance functions")
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func requireLayers(required []string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	names := make(map[string]bool, len(available))
	for i := range available {
		available[i].Deref()
		end := FindFirstZeroInByteArray(available[i].LayerName[:])
		names[string(available[i].LayerName[:end])] = true
	}
	for _, name := range required {
		if !names[name] {
			return errors.Newf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

func (b *Backend) WaitIdle() error {
	if b.device.LogicalDevice == nil {
		return nil
	}
	return check(vk.DeviceWaitIdle(b.device.LogicalDevice), "vkDeviceWaitIdle")
}

// Shutdown destroys everything in the opposite order of creation. Objects
// handed out through gpu.Device must already be destroyed. Leftovers are
// reported and leaked.
func (b *Backend) Shutdown() {
	if err := b.WaitIdle(); err != nil {
		core.LogError("shutdown: %v", err)
	}
	for kind, n := range b.objects.live() {
		if n > 0 {
			core.LogWarn("shutdown: %d %s object(s) still alive", n, kind)
		}
	}

	if b.device.LogicalDevice != nil {
		b.DestroySwapchain()
		core.LogDebug("Destroying Vulkan device...")
		b.deviceDestroy()
	}

	core.LogDebug("Destroying Vulkan surface...")
	if b.surface != vk.NullSurface {
		vk.DestroySurface(b.instance, b.surface, b.allocator)
		b.surface = vk.NullSurface
	}

	if b.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(b.instance, b.debugCallback, b.allocator)
		b.debugCallback = vk.NullDebugReportCallback
	}

	if b.instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(b.instance, b.allocator)
		b.instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
