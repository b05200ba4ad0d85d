package engine

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/frame"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
	"github.com/spaghettifunk/prism/engine/renderer/vulkan"
)

type Engine struct {
	currentStage Stage
	config       *core.Config
	gameInstance *Game
	bus          *core.EventBus
	platform     *platform.Platform
	backend      *vulkan.Backend
	ctx          *gpu.Context
	driver       *frame.Driver
	renderers    []*renderer.Renderer
	assetManager *assets.AssetManager
	shaders      ShaderLoader
	clock        *core.Clock
	metrics      *core.Metrics
	isRunning    atomic.Bool
}

func New(cfg *core.Config, g *Game) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if g == nil {
		return nil, errors.New("engine created without a game")
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	bus := core.NewEventBus()
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		gameInstance: g,
		bus:          bus,
		platform:     platform.New(bus),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Config() *core.Config            { return e.config }
func (e *Engine) Bus() *core.EventBus             { return e.bus }
func (e *Engine) Context() *gpu.Context           { return e.ctx }
func (e *Engine) Assets() *assets.AssetManager    { return e.assetManager }
func (e *Engine) Renderers() []*renderer.Renderer { return e.renderers }
func (e *Engine) Metrics() *core.Metrics          { return e.metrics }
func (e *Engine) Stage() Stage                    { return e.currentStage }
func (e *Engine) Swapchain() gpu.SwapchainInfo    { return e.driver.Swapchain() }
func (e *Engine) Driver() *frame.Driver           { return e.driver }
func (e *Engine) RenderMode() (metadata.RenderMode, error) {
	return metadata.ParseRenderMode(e.config.Renderer.RenderMode)
}

// Initialize opens the window, brings up the Vulkan device and hands over to
// the game.
func (e *Engine) Initialize() error {
	core.Assert(e.currentStage == EngineStageUninitialized, "engine initialized in stage %s", e.currentStage)
	e.currentStage = EngineStageInitializing

	app := e.config.Application
	win := e.config.Window
	if err := e.platform.Startup(app.Name, win.X, win.Y, win.Width, win.Height); err != nil {
		return err
	}

	e.backend = vulkan.New(e.platform, e.config.Renderer.Validation)
	if err := e.backend.Initialize(app.Name); err != nil {
		return err
	}
	return e.start(gpu.NewContext(e.backend, e.config.Renderer.FramesInFlight), e.platform)
}

// start wires the event handlers, frame driver, assets and game onto an
// initialized device.
func (e *Engine) start(ctx *gpu.Context, surface frame.Surface) error {
	e.ctx = ctx
	e.currentStage = EngineStageInitializing

	e.bus.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.bus.Register(core.EventCodeKeyPressed, e, e.onKey)
	e.bus.Register(core.EventCodeKeyReleased, e, e.onKey)
	e.bus.Register(core.EventCodeResized, e, e.onResized)
	e.bus.Register(core.EventCodeAssetChanged, e, e.onAssetChanged)

	driver, err := frame.NewDriver(ctx, surface, frame.Config{ClearColor: e.config.Renderer.ClearColor})
	if err != nil {
		return err
	}
	e.driver = driver

	am, err := assets.NewAssetManager(e.config.Assets.Dir, assets.DefaultQueueSize)
	if err != nil {
		return err
	}
	e.assetManager = am
	if e.shaders == nil {
		e.shaders = am
	}
	if e.config.Assets.Watch {
		if err := am.Watch(); err != nil {
			return err
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return errors.Wrap(err, "game initialize")
		}
	}
	if e.gameInstance.FnOnResize != nil {
		ext := driver.Swapchain().Extent
		if err := e.gameInstance.FnOnResize(ext.Width, ext.Height); err != nil {
			return errors.Wrap(err, "game resize")
		}
	}

	e.isRunning.Store(true)
	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with %d renderer(s)", len(e.renderers))
	return nil
}

// AddRenderer sets up a renderer for mesh and registers it with the frame
// driver. Renderers draw in the order they were added.
func (e *Engine) AddRenderer(mesh *metadata.Mesh, params *resource.RenderParams) (*renderer.Renderer, error) {
	core.Assert(e.driver != nil, "renderer added before the frame driver exists")
	r := renderer.New(e.ctx, mesh, params, e.driver.Swapchain())
	if err := r.Setup(); err != nil {
		return nil, errors.Wrapf(err, "setting up %s", r)
	}
	e.driver.AddDrawable(r)
	e.driver.AddSwapchainListener(r)
	e.renderers = append(e.renderers, r)
	return r, nil
}

func (e *Engine) Run() error {
	core.Assert(e.currentStage == EngineStageInitialized, "engine run in stage %s", e.currentStage)
	e.currentStage = EngineStageRunning
	e.clock.Start()

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			break
		}
		if err := e.frame(); err != nil {
			core.LogError("frame failed, shutting down: %v", err)
			e.isRunning.Store(false)
			return err
		}
	}
	return nil
}

// frame drains asset changes, then renders and presents one frame.
func (e *Engine) frame() error {
	for _, path := range e.assetManager.Changes() {
		var ctx core.EventContext
		ctx.Data.S = path
		e.bus.Fire(core.EventCodeAssetChanged, e, ctx)
	}

	if !e.clock.Running() {
		e.clock.Start()
	}
	delta := e.clock.Tick()

	start := time.Now()
	err := e.driver.Frame(func(f uint32) error {
		fc := &resource.FrameContext{
			Frame:     f,
			Number:    e.driver.FrameNumber(),
			DeltaTime: delta,
			Extent:    e.driver.Swapchain().Extent,
		}
		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(fc); err != nil {
				return errors.Wrap(err, "game update")
			}
		}
		for _, r := range e.renderers {
			if err := r.Update(fc); err != nil {
				return errors.Wrapf(err, "updating %s", r)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.Update(time.Since(start))
	return nil
}

// Quit stops Run after the current frame. Safe to call from any goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
	e.platform.Wake()
}

// Shutdown releases everything in reverse order of creation. Errors are
// collected and the teardown carries on.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs error
	if e.driver != nil {
		if err := e.driver.WaitIdle(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "wait idle"))
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "game shutdown"))
		}
	}
	for i := len(e.renderers) - 1; i >= 0; i-- {
		e.renderers[i].Cleanup()
	}
	e.renderers = nil
	if e.driver != nil {
		e.driver.Destroy()
		e.driver = nil
	}
	if e.backend != nil {
		e.backend.Shutdown()
		e.backend = nil
	}
	if e.assetManager != nil {
		if err := e.assetManager.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.platform.Window != nil {
		e.platform.Shutdown()
	}
	e.bus.Shutdown()
	e.clock.Stop()

	fps, ms := e.metrics.Frame()
	core.LogInfo("engine shut down (last %.0f fps, %.2f ms/frame)", fps, ms)
	e.currentStage = EngineStageShutdown
	return errs
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EventCodeApplicationQuit {
		core.LogInfo("EventCodeApplicationQuit received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	key := context.Data.U32[0]
	if code == core.EventCodeKeyPressed {
		core.LogDebug("key %d pressed", key)
	} else {
		core.LogDebug("key %d released", key)
	}
	// Other listeners may want keys too.
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width, height := context.Data.U32[0], context.Data.U32[1]
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, frames wait for a restore.")
		return false
	}
	core.LogDebug("Window resize: %d, %d", width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize: %v", err)
		}
	}
	return false
}

// onAssetChanged routes a changed file to every renderer reading it. The
// rebuild happens on the renderer's next update.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	path := context.Data.S
	for _, r := range e.renderers {
		changed, err := applyAssetChange(r.Params(), path, e.shaders)
		if err != nil {
			core.LogWarn("%s: keeping previous version of %s: %v", r, path, err)
			continue
		}
		if changed {
			core.LogInfo("%s: reloading %s", r, path)
		}
	}
	return false
}
