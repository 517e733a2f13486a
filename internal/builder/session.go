package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ShimmerHandmade/modernbuilder/internal/autosave"
	"github.com/ShimmerHandmade/modernbuilder/internal/document"
	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
)

// Session is one live editing session: the loaded document, the tree
// store holding the active page, the reconciler interpreting drops, and
// the autosave coordinator flushing snapshots. A website document is
// exclusively owned by its session while editing; concurrent edits to
// the same website from elsewhere are last-write-wins at the store.
type Session struct {
	mu           sync.Mutex
	websiteID    string
	doc          *model.Document
	activePage   model.Page
	pageSettings model.PageSettings

	tree        *TreeStore
	reconciler  *Reconciler
	coordinator *autosave.Coordinator

	bus    *notify.Bus
	cancel context.CancelFunc
}

// SessionOptions configures an editing session.
type SessionOptions struct {
	// RequestedPageID opens a specific page; empty falls back to the
	// home page, then the first page.
	RequestedPageID string
	// Autosave is passed through to the coordinator.
	Autosave autosave.Options
}

// OpenSession loads a website document, repairs its required pages,
// selects the active page and stands up the mutation engine around it.
// The autosave loop starts immediately and runs until Close.
func OpenSession(ctx context.Context, store storage.DocumentStore, websiteID string, bus *notify.Bus, logger *slog.Logger, opts SessionOptions) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	doc, err := store.LoadDocument(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("opening session for website %s failed: %w", websiteID, err)
	}

	s := &Session{
		websiteID: websiteID,
		doc:       doc,
		bus:       bus,
	}
	s.tree = NewTreeStore(logger, bus)
	s.reconciler = NewReconciler(s.tree, nil, logger)
	s.coordinator = autosave.NewCoordinator(websiteID, store, s.snapshot, bus, logger, withOnSaved(opts.Autosave, s.tree.MarkClean))

	repaired := document.EnsureRequiredPages(doc, nil)
	s.activePage = document.SelectActivePage(doc, opts.RequestedPageID)
	s.loadActivePage()
	if repaired {
		// The repair itself is an edit worth persisting.
		s.coordinator.MarkDirty()
		logger.Info("Created missing required pages", "websiteID", websiteID)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.coordinator.Run(runCtx)

	return s, nil
}

func withOnSaved(opts autosave.Options, onSaved func()) autosave.Options {
	opts.OnSaved = onSaved
	return opts
}

// Close stops the autosave loop; a final best-effort flush runs if the
// session is still dirty.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// WebsiteID returns the website this session edits.
func (s *Session) WebsiteID() string {
	return s.websiteID
}

// Tree exposes the element tree store for mutation handlers.
func (s *Session) Tree() *TreeStore {
	return s.tree
}

// Reconciler exposes the drag-drop reconciler.
func (s *Session) Reconciler() *Reconciler {
	return s.reconciler
}

// ActivePage returns the page currently loaded in the tree store.
func (s *Session) ActivePage() model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePage
}

// PageSettings returns the active page's settings.
func (s *Session) PageSettings() model.PageSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageSettings
}

// UpdatePageSettings replaces the active page's settings and marks the
// session dirty, like any other edit.
func (s *Session) UpdatePageSettings(settings model.PageSettings) {
	s.mu.Lock()
	s.pageSettings = settings
	websiteID, pageID := s.websiteID, s.activePage.ID
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(notify.Event{Type: notify.ContentChanged, WebsiteID: websiteID, PageID: pageID})
	}
}

// SwitchPage commits the active page's tree into the document and loads
// the requested page. Unknown page ids fall back per the selection
// rules. The commit stays in memory; persistence happens on the next
// save.
func (s *Session) SwitchPage(pageID string) model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitActivePageLocked()
	s.activePage = document.SelectActivePage(s.doc, pageID)
	s.loadActivePage()
	return s.activePage
}

// Pages lists the document's pages.
func (s *Session) Pages() []model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Page(nil), s.doc.Settings.Pages...)
}

// Save triggers a manual save through the coordinator.
func (s *Session) Save(ctx context.Context) error {
	return s.coordinator.Save(ctx)
}

// SaveState reports the coordinator's state and display text.
func (s *Session) SaveState() (autosave.State, string) {
	return s.coordinator.State(), s.coordinator.StatusText()
}

// loadActivePage pulls the active page's tree out of the document into
// the tree store. Caller holds s.mu.
func (s *Session) loadActivePage() {
	elements, settings := document.LoadPageContent(s.doc, s.activePage.ID)
	s.pageSettings = settings
	s.tree.Load(s.websiteID, s.activePage.ID, elements)
}

// commitActivePageLocked folds the tree store's current state back into
// the document. Caller holds s.mu.
func (s *Session) commitActivePageLocked() {
	document.CommitPageContent(s.doc, s.activePage.ID, s.tree.Elements(), s.pageSettings)
}

// snapshot captures the full persistence snapshot for the coordinator.
// It commits the active page first, so the snapshot reflects the tree
// as of the moment the save begins.
func (s *Session) snapshot() autosave.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitActivePageLocked()

	settings := s.pageSettings
	return autosave.Snapshot{
		Content:      model.CloneElements(s.doc.Content),
		PageSettings: &settings,
		Patch: model.SettingsPatch{
			Pages:         append([]model.Page(nil), s.doc.Settings.Pages...),
			PagesContent:  s.doc.Settings.PagesContent,
			PagesSettings: s.doc.Settings.PagesSettings,
		},
	}
}

// Manager hands out at most one editing session per website, mirroring
// the one-session-per-document ownership model.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    storage.DocumentStore
	bus      *notify.Bus
	logger   *slog.Logger
	autosave autosave.Options
}

// NewManager creates a session manager over the given store.
func NewManager(store storage.DocumentStore, bus *notify.Bus, logger *slog.Logger, autosaveOpts autosave.Options) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		bus:      bus,
		logger:   logger,
		autosave: autosaveOpts,
	}
}

// Session returns the live session for a website, opening one if
// needed.
func (m *Manager) Session(ctx context.Context, websiteID, requestedPageID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[websiteID]; ok {
		return s, nil
	}
	s, err := OpenSession(ctx, m.store, websiteID, m.bus, m.logger, SessionOptions{
		RequestedPageID: requestedPageID,
		Autosave:        m.autosave,
	})
	if err != nil {
		return nil, err
	}
	m.sessions[websiteID] = s
	return s, nil
}

// CloseAll shuts down every live session, flushing unsaved edits.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
