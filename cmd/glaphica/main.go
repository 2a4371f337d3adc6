// Command glaphica is the composition root: it constructs every
// collaborator package (runtime fabric, document, tile atlas stores,
// merge engine, GPU executor, brush pipeline, frame scheduler, view
// transform) and exposes the constructor/run_until_exit entry point as
// the CLI surface: open a device, build the dependent resources off it,
// run until told to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/wgpu"

	"github.com/SunastanS/glaphica/apperror"
	"github.com/SunastanS/glaphica/applog"
	"github.com/SunastanS/glaphica/atlas"
	"github.com/SunastanS/glaphica/brush"
	"github.com/SunastanS/glaphica/document"
	"github.com/SunastanS/glaphica/gpu"
	"github.com/SunastanS/glaphica/gpuexec"
	"github.com/SunastanS/glaphica/merge"
	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
	"github.com/SunastanS/glaphica/runtime"
	"github.com/SunastanS/glaphica/scheduler"
	"github.com/SunastanS/glaphica/view"
)

const (
	backendDocument BackendID = 0
	backendBrush    BackendID = 1
)

// BackendID is a local alias kept distinct from protocol.BackendID at the
// call site for readability; the two atlas stores below are keyed by
// these two backend tags so document tiles and brush buffer tiles never
// collide in a TileKey.
type BackendID = protocol.BackendID

// Options configures the composition root: an optional startup image
// path and optional replay paths.
type Options struct {
	StartupImagePath string
	ReplayTracePath  string
	ViewportWidth    int
	ViewportHeight   int
}

// App owns every long-lived collaborator and the two background
// goroutines (engine thread, main/GPU thread) that drive them.
type App struct {
	opts Options

	bridge    *runtime.Bridge
	doc       *document.Document
	rootLayer protocol.LayerID
	merge     *merge.Engine

	docTexture   *gpu.AtlasTexture
	brushTexture *gpu.AtlasTexture
	docStore     *atlas.Store
	brushStore   *atlas.Store
	registry     *brush.Registry

	scheduler *scheduler.FrameScheduler
	view      *view.Transform

	device  *gpu.Device
	surface *gpu.Surface

	engineLoop *runtime.EngineLoop
	mainLoop   *runtime.MainLoop
}

// New constructs the application. It opens a GPU device eagerly (the
// wgpu.CreateInstance/RequestAdapter/RequestDevice chain in gpu.Open)
// but defers surface configuration to the caller, since a headless
// replay run has no window to present into.
func New(opts Options) (*App, error) {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 720
	}

	device, err := gpu.Open(wgpu.PowerPreferenceHighPerformance)
	if err != nil {
		return nil, apperror.Wrap(apperror.SeverityUnrecoverable, apperror.CategorySurface, "open gpu device", err)
	}

	docTexture, err := gpu.NewAtlasTexture(device, model.PayloadKindRGBA8, 16, 1)
	if err != nil {
		return nil, apperror.Wrap(apperror.SeverityUnrecoverable, apperror.CategoryTile, "create document atlas texture", err)
	}
	brushTexture, err := gpu.NewAtlasTexture(device, model.PayloadKindR32Float, 16, 1)
	if err != nil {
		return nil, apperror.Wrap(apperror.SeverityUnrecoverable, apperror.CategoryTile, "create brush buffer atlas texture", err)
	}

	waterlines := &protocol.Waterlines{}
	docStore := atlas.NewStore(backendDocument, model.PayloadKindRGBA8, 16, 256, docTexture)
	brushStore := atlas.NewStore(backendBrush, model.PayloadKindR32Float, 16, 64, brushTexture)
	registry := brush.NewRegistry(brushStore)

	doc := document.New()

	commit := func(layer protocol.LayerID, mappings []merge.TileMapping) error {
		applog.Debugf(applog.CategoryRenderTreeTrace, "merge commit layer=%d mappings=%d", layer, len(mappings))
		return nil
	}
	release := func(keys []protocol.TileKey) error {
		_, err := brushStore.ReleaseSetAtomic(keys)
		return err
	}
	mergeEngine := merge.NewEngine(waterlines, commit, release)

	arena := gpuexec.NewArena(8<<20, 256, false)

	strokeTileAt := func(session protocol.StrokeSessionID, coord model.TileCoord) (protocol.TileKey, bool) {
		key, err := registry.TileFor(session, coord)
		if err != nil {
			return 0, false
		}
		return key, true
	}
	baseLookup := func(layer protocol.LayerID, coord model.TileCoord) (protocol.TileKey, bool) {
		return docLayerTileAt(doc, layer, coord)
	}
	allocOutput := func() (protocol.TileKey, error) {
		return docStore.Allocate()
	}
	// lastSeenVersion tracks, per layer, the TileImage version the planner
	// last observed, so dirty reports only what changed since that call
	// rather than the image's whole history every tick.
	lastSeenVersion := map[protocol.LayerID]uint64{}
	dirty := func(source protocol.ImageSource) ([]model.TileCoord, bool) {
		if source.Kind != protocol.ImageSourceDocumentLayer {
			return nil, false
		}
		layer := doc.Layer(source.Layer)
		if layer == nil || layer.Image == nil {
			return nil, false
		}
		coords, current := layer.Image.DirtySince(lastSeenVersion[source.Layer])
		lastSeenVersion[source.Layer] = current
		return coords, false
	}
	resolve := func(source protocol.ImageSource, coord model.TileCoord) (protocol.TileAddress, bool) {
		var key protocol.TileKey
		var ok bool
		switch source.Kind {
		case protocol.ImageSourceDocumentLayer:
			key, ok = docLayerTileAt(doc, source.Layer, coord)
		case protocol.ImageSourceBrushBuffer:
			key, ok = registry.StrokeTileAt(source.Session)(coord)
		}
		if !ok {
			return protocol.TileAddress{}, false
		}
		addr, err := docStore.Resolve(key)
		if err != nil {
			return protocol.TileAddress{}, false
		}
		return addr, true
	}

	executor := gpuexec.NewExecutor(device, nil, mergeEngine, arena, dirty, resolve, strokeTileAt, baseLookup, allocOutput)

	bridge := runtime.NewBridge(runtime.DefaultConfig())
	mainLoop := runtime.NewMainLoop(bridge.ClaimMainEndpoint(), executor, waterlines, runtime.DefaultMainLoopConfig())

	fs := scheduler.NewFrameScheduler(150*time.Millisecond, 8, 512)
	vt := view.NewTransform(float64(opts.ViewportWidth), float64(opts.ViewportHeight))

	rootLayer, _ := doc.AddLeafLayer(0, "canvas")
	logic := newEngineLogic(rootLayer, vt, fs)
	handlers := runtime.ReceiptHandlers{
		OnWaterlineAdvance: mergeEngine.ProcessPendingReleases,
		OnMergeNotices: func(notices []protocol.CompletionNotice) {
			for _, n := range notices {
				if _, err := mergeEngine.AckResult(n); err != nil {
					applog.Debugf(applog.CategoryRenderTreeTrace, "ack_result receipt=%d failed: %v", n.Receipt, err)
				}
			}
		},
	}
	engineLoop := runtime.NewEngineLoop(bridge.ClaimEngineEndpoint(), logic, waterlines, runtime.DefaultEngineLoopConfig(), handlers)

	app := &App{
		opts:         opts,
		bridge:       bridge,
		doc:          doc,
		rootLayer:    rootLayer,
		merge:        mergeEngine,
		docTexture:   docTexture,
		brushTexture: brushTexture,
		docStore:     docStore,
		brushStore:   brushStore,
		registry:     registry,
		scheduler:    fs,
		view:         vt,
		device:       device,
		engineLoop:   engineLoop,
		mainLoop:     mainLoop,
	}

	if opts.StartupImagePath != "" {
		if err := app.loadStartupImage(opts.StartupImagePath); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// docLayerTileAt resolves the TileKey a document layer currently has at
// coord, or false if the layer is unknown or has never been painted
// there — correct for a freshly created or still-empty layer.
func docLayerTileAt(doc *document.Document, layer protocol.LayerID, coord model.TileCoord) (protocol.TileKey, bool) {
	l := doc.Layer(layer)
	if l == nil || l.Image == nil {
		return 0, false
	}
	return l.Image.Tile(coord)
}

func (a *App) loadStartupImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperror.Wrap(apperror.SeverityRecoverable, apperror.CategoryRuntime, "open startup image", err)
	}
	defer f.Close()

	img, err := document.DecodeRaster(f)
	if err != nil {
		return apperror.Wrap(apperror.SeverityRecoverable, apperror.CategoryRuntime, "decode startup image", err)
	}

	layer := a.doc.Layer(a.rootLayer)
	if layer == nil || layer.Image == nil {
		return apperror.New(apperror.SeverityLogicBug, apperror.CategoryRuntime, "root layer missing its tile image")
	}
	if err := document.Ingest(a.docStore, layer.Image, img, 0, 0); err != nil {
		return apperror.Wrap(apperror.SeverityRecoverable, apperror.CategoryTile, "ingest startup image", err)
	}
	return nil
}

// RunUntilExit drives the engine and main loops until ctx is canceled or
// an OS interrupt/terminate signal arrives.
func (a *App) RunUntilExit(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	a.mainLoop.OnFeedbackQueueTimeout = func(cmdErr *protocol.CommandError) {
		select {
		case errCh <- apperror.Wrap(apperror.SeverityUnrecoverable, apperror.CategoryRuntime, "feedback queue timeout", cmdErr):
		default:
		}
	}

	go a.runEngineLoop(ctx)
	go a.runMainLoop(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) runEngineLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		a.engineLoop.Tick(ctx)
	}
}

func (a *App) runMainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		a.mainLoop.Tick(ctx)
	}
}

// Close releases the GPU device, its atlas textures, and any surface the
// app configured.
func (a *App) Close() {
	if a.surface != nil {
		a.surface.Release()
	}
	if a.brushTexture != nil {
		a.brushTexture.Release()
	}
	if a.docTexture != nil {
		a.docTexture.Release()
	}
	if a.device != nil {
		a.device.Release()
	}
}

func main() {
	opts := Options{}
	if len(os.Args) > 1 {
		opts.StartupImagePath = os.Args[1]
	}

	app, err := New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "glaphica: startup failed:", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.RunUntilExit(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "glaphica: exited with error:", err)
		os.Exit(1)
	}
}
