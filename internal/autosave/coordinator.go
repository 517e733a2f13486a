// Package autosave tracks dirty state for an editing session and
// reconciles the in-memory document with persistent storage, on a timer
// and on explicit triggers.
package autosave

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
)

// DefaultInterval is the autosave timer period.
const DefaultInterval = 30 * time.Second

// State is the save lifecycle of an editing session.
type State int

const (
	// Clean: the persisted snapshot matches the in-memory document.
	Clean State = iota
	// Dirty: unsaved edits exist.
	Dirty
	// Saving: a persistence call is in flight.
	Saving
	// SaveFailed: the last save was rejected; a manual retry is available.
	SaveFailed
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case SaveFailed:
		return "save-failed"
	default:
		return "unknown"
	}
}

// Snapshot is everything one save persists: the legacy content tree,
// the active page's settings, and the patch over the document's
// multi-page settings.
type Snapshot struct {
	Content      []*model.Element
	PageSettings *model.PageSettings
	Patch        model.SettingsPatch
}

// SnapshotFunc captures the editing state at the moment a save begins.
// The coordinator always snapshots first and then writes, so edits made
// while the write is in flight are never torn into it.
type SnapshotFunc func() Snapshot

// Coordinator runs the save state machine for one website's editing
// session. At most one save is in flight at a time; triggers that
// arrive while saving are coalesced into it, since the in-flight save
// already persists the latest snapshot it captured.
type Coordinator struct {
	mu           sync.Mutex
	state        State
	pendingDirty bool // an edit arrived while a save was in flight
	lastSaved    time.Time

	websiteID string
	store     storage.DocumentStore
	snapshot  SnapshotFunc
	onSaved   func()
	bus       *notify.Bus
	logger    *slog.Logger
	interval  time.Duration
}

// Options configures optional coordinator behaviour.
type Options struct {
	// Interval overrides the autosave period; zero means DefaultInterval.
	Interval time.Duration
	// OnSaved runs after a successful save that left no pending edits,
	// typically to clear the tree store's dirty flag.
	OnSaved func()
}

// NewCoordinator wires a coordinator to the bus: content-changed events
// for its website mark it dirty.
func NewCoordinator(websiteID string, store storage.DocumentStore, snapshot SnapshotFunc, bus *notify.Bus, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Coordinator{
		state:     Clean,
		websiteID: websiteID,
		store:     store,
		snapshot:  snapshot,
		onSaved:   opts.OnSaved,
		bus:       bus,
		logger:    logger,
		interval:  interval,
	}
	if bus != nil {
		bus.Subscribe(notify.ContentChanged, func(e notify.Event) {
			if e.WebsiteID == websiteID {
				c.MarkDirty()
			}
		})
	}
	return c
}

// State returns the current save state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSaved returns the time of the last successful save, zero if none.
func (c *Coordinator) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// MarkDirty records an edit. While a save is in flight the edit is
// remembered so the session comes out of the save Dirty rather than
// Clean; in SaveFailed it re-arms the autosave timer with the full
// current snapshot (no partial retry).
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Saving {
		c.pendingDirty = true
		return
	}
	c.state = Dirty
}

// Save persists the current snapshot if there is anything to persist.
// A call while a save is already in flight is coalesced (returns nil
// without starting a second persistence call). A call while Clean is a
// no-op.
func (c *Coordinator) Save(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Saving, Clean:
		c.mu.Unlock()
		return nil
	}
	c.state = Saving
	c.pendingDirty = false
	c.mu.Unlock()

	// Snapshot outside the lock, before writing: the save persists the
	// state as of now, not as of when it was scheduled.
	snap := c.snapshot()
	err := c.store.SaveDocument(ctx, c.websiteID, snap.Content, snap.PageSettings, snap.Patch)

	c.mu.Lock()
	if err != nil {
		c.state = SaveFailed
		c.mu.Unlock()
		c.logger.Error("Failed to save website document", "websiteID", c.websiteID, "error", err)
		c.publish(notify.Event{Type: notify.SaveFailed, WebsiteID: c.websiteID, Detail: err.Error()})
		return fmt.Errorf("saving website %s failed: %w", c.websiteID, err)
	}

	c.lastSaved = time.Now()
	clean := !c.pendingDirty
	if clean {
		c.state = Clean
	} else {
		c.state = Dirty
		c.pendingDirty = false
	}
	c.mu.Unlock()

	if clean && c.onSaved != nil {
		c.onSaved()
	}
	c.logger.Debug("Saved website document", "websiteID", c.websiteID)
	c.publish(notify.Event{Type: notify.SaveCompleted, WebsiteID: c.websiteID})
	return nil
}

// Run drives the autosave timer until the context is cancelled. On
// cancellation a final best-effort save flushes unsaved edits with a
// short grace period.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if c.State() == Dirty {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := c.Save(flushCtx); err != nil {
					c.logger.Warn("Final flush on shutdown failed", "websiteID", c.websiteID, "error", err)
				}
				cancel()
			}
			return
		case <-ticker.C:
			if c.State() != Dirty {
				continue
			}
			if err := c.Save(ctx); err != nil {
				// Already logged and surfaced; the next edit re-arms.
				continue
			}
		}
	}
}

func (c *Coordinator) publish(event notify.Event) {
	if c.bus != nil {
		c.bus.Publish(event)
	}
}
