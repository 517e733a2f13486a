package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
)

// Saves made through the store itself still raise filesystem events;
// anything this soon after one of our own writes is assumed to be it.
const selfWriteWindow = 2 * time.Second

// Watcher observes a JSON document directory and announces a
// document-reloaded event whenever a document file changes on disk,
// for instance when the CLI edits a website while the server has
// editor sessions open. Connected editors can then offer to reload.
// Events caused by the store's own saves are suppressed; editors only
// hear about changes made behind the server's back.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *JSONStore
	bus     *notify.Bus
	logger  *slog.Logger
}

// NewWatcher starts watching the given JSON store's directory.
func NewWatcher(store *JSONStore, bus *notify.Bus, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := fw.Add(store.BasePath()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", store.BasePath(), err)
	}
	return &Watcher{watcher: fw, store: store, bus: bus, logger: logger}, nil
}

// Run dispatches filesystem events until the context is cancelled.
// Run it as a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
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
			w.logger.Error("Filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Atomic saves surface as a rename onto the target; direct edits as
	// writes. Temp files and non-documents are ignored.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
		return
	}
	websiteID := strings.TrimSuffix(name, ".json")
	if w.store.RecentlyWritten(websiteID, selfWriteWindow) {
		w.logger.Debug("Ignoring event from own save", "websiteID", websiteID, "op", event.Op.String())
		return
	}
	w.logger.Debug("Document changed on disk", "websiteID", websiteID, "op", event.Op.String())
	w.bus.Publish(notify.Event{
		Type:      notify.DocumentReloaded,
		WebsiteID: websiteID,
		Detail:    "document changed on disk",
	})
}
