package watchdog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Factory struct {
	logger *zap.Logger
}

func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{logger: logger.Named("watchdog")}
}

// FilterFunc decides whether a created file is forwarded. Returning false
// drops the event.
type FilterFunc func(string) bool

// WatchDog forwards file-creation events under the watched directories to
// its notify channel. The channel is closed when the context is done.
type WatchDog struct {
	ctx    context.Context
	notify chan<- string
	filter FilterFunc
	logger *zap.Logger

	watcher *fsnotify.Watcher
}

// New starts a watchdog. A nil filter forwards every created file.
func (f *Factory) New(ctx context.Context, notify chan<- string, filter FilterFunc) *WatchDog {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Fatal("failed to create fsnotify watcher", zap.Error(err))
	}

	dog := &WatchDog{
		ctx:     ctx,
		notify:  notify,
		filter:  filter,
		logger:  f.logger,
		watcher: watcher,
	}
	go dog.watch()
	return dog
}

// AddDir adds a directory to the watch list. The directory must exist.
func (w *WatchDog) AddDir(dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		w.logger.Error("failed to resolve watch directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	if _, err := os.Stat(absDir); err != nil {
		w.logger.Error("watch directory is not accessible", zap.String("dir", absDir), zap.Error(err))
		return
	}
	if err := w.watcher.Add(absDir); err != nil {
		w.logger.Error("failed to watch directory", zap.String("dir", absDir), zap.Error(err))
		return
	}
	w.logger.Debug("watching directory", zap.String("dir", absDir))
}

func (w *WatchDog) watch() {
	defer w.watcher.Close()
	defer close(w.notify)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}

func (w *WatchDog) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) {
		return
	}
	if w.filter != nil && !w.filter(event.Name) {
		w.logger.Debug("file ignored by filter", zap.String("file", event.Name))
		return
	}
	select {
	case w.notify <- event.Name:
	case <-w.ctx.Done():
	}
}
