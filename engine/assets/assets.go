package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// DefaultQueueSize bounds the number of changed paths kept between two drains.
const DefaultQueueSize = 256

// AssetManager watches the asset directory and queues paths of shaders and
// images that changed on disk. The queue is drained on the host thread once
// per frame.
type AssetManager struct {
	root    string
	changes *containers.RingQueue[string]
	shaders loaders.ShaderLoader

	mu       sync.Mutex
	fsnotify *fsnotify.Watcher
	isClosed bool
	done     chan struct{}
	stopped  chan struct{}
}

func NewAssetManager(root string, queueSize int) (*AssetManager, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &AssetManager{
		root:    filepath.Clean(root),
		changes: containers.NewRingQueue[string](queueSize),
	}, nil
}

func (am *AssetManager) Root() string { return am.root }

// Watch starts watching the root and all sub-directories.
func (am *AssetManager) Watch() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	if am.fsnotify != nil {
		return errors.New("asset watcher already running")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating asset watcher")
	}
	am.fsnotify = fsWatch
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	if err := am.watchRecursive(am.root); err != nil {
		fsWatch.Close()
		am.fsnotify = nil
		return err
	}
	go am.start()
	core.LogInfo("watching assets under %s", am.root)
	return nil
}

// Close stops the watcher. Queued changes stay readable.
func (am *AssetManager) Close() error {
	am.mu.Lock()
	if am.fsnotify == nil || am.isClosed {
		am.mu.Unlock()
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.mu.Unlock()
	<-am.stopped
	return nil
}

// Changes drains the queue. Each path is reported once even when it was
// written several times since the last drain.
func (am *AssetManager) Changes() []string {
	drained := am.changes.Drain()
	if len(drained) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(drained))
	out := drained[:0]
	for _, p := range drained {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// LoadShader reads SPIR-V from path.
func (am *AssetManager) LoadShader(path, entry string) (metadata.ShaderSource, error) {
	return am.shaders.Load(path, entry)
}

// ShaderPath resolves a compiled shader name under the root.
func (am *AssetManager) ShaderPath(name string) string {
	return filepath.Join(am.root, "shaders", name+".spv")
}

// IsWatched reports whether changes to path are queued.
func IsWatched(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)

		case <-am.done:
			if err := am.fsnotify.Close(); err != nil {
				core.LogWarn("closing asset watcher: %v", err)
			}
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("watching new directory %s: %v", e.Name, err)
			}
			return
		}
	}
	// Editors often replace files by rename, which shows up as a create.
	if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsWatched(e.Name) {
		return
	}
	path := filepath.Clean(e.Name)
	if err := am.changes.Enqueue(path); err != nil {
		core.LogWarn("dropping asset change %s: %v", path, err)
		return
	}
	core.LogDebug("asset changed: %s", path)
}

// watchRecursive adds all directories under path to the watch list.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := am.fsnotify.Add(walkPath); err != nil {
			return errors.Wrapf(err, "watching %s", walkPath)
		}
		return nil
	})
}
