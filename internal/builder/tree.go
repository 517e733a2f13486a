// Package builder implements the in-editor mutation engine: the element
// tree store that owns the page being edited, and the drag-drop
// reconciler that translates editor gestures into tree mutations.
package builder

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
)

var (
	// ErrNotFound reports a missing element or container id.
	ErrNotFound = errors.New("element not found")
	// ErrInvalidMove reports an attempt to move a node into its own subtree.
	ErrInvalidMove = errors.New("cannot move element into its own subtree")
)

// ElementPatch carries the fields an update wants to change. Props is
// shallow-merged into the element's existing props, one nested level
// deep.
type ElementPatch struct {
	Content *string        `json:"content,omitempty"`
	Props   map[string]any `json:"props,omitempty"`
}

// TreeStore owns the canonical in-memory element tree for the page
// currently being edited. All mutations go through it; every effective
// mutation marks the tree dirty and announces a content-changed event
// on the bus.
//
// The store hands out deep copies on reads, so callers can never alias
// the canonical tree.
type TreeStore struct {
	mu        sync.Mutex
	websiteID string
	pageID    string
	roots     []*model.Element
	dirty     bool
	logger    *slog.Logger
	bus       *notify.Bus
}

// NewTreeStore creates an empty tree store.
func NewTreeStore(logger *slog.Logger, bus *notify.Bus) *TreeStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TreeStore{logger: logger, bus: bus}
}

// Load replaces the store's contents with the given page tree and
// resets the dirty flag. The elements are deep-copied in.
func (s *TreeStore) Load(websiteID, pageID string, elements []*model.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.websiteID = websiteID
	s.pageID = pageID
	s.roots = model.CloneElements(elements)
	if s.roots == nil {
		s.roots = []*model.Element{}
	}
	s.dirty = false
}

// PageID returns the id of the page currently loaded.
func (s *TreeStore) PageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageID
}

// Elements returns a deep-copied snapshot of the root sequence.
func (s *TreeStore) Elements() []*model.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := model.CloneElements(s.roots)
	if out == nil {
		out = []*model.Element{}
	}
	return out
}

// Dirty reports whether the tree has unsaved mutations.
func (s *TreeStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkClean clears the dirty flag after a successful save.
func (s *TreeStore) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// Find returns a deep copy of the first element with the given id,
// searching the root sequence and all nested children depth-first.
func (s *TreeStore) Find(id string) (*model.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := findInSequence(s.roots, id)
	if el == nil {
		return nil, false
	}
	return el.Clone(), true
}

// Locate reports where an element currently lives: the id of its
// parent container (empty for the root sequence) and its index within
// that sequence. The drag-drop reconciler uses this as the authority on
// an element's position instead of trusting externally supplied payload
// fields.
func (s *TreeStore) Locate(id string) (containerID string, index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locateInSequence(s.roots, "", id)
}

func locateInSequence(seq []*model.Element, parentID, id string) (string, int, bool) {
	for i, el := range seq {
		if el.ID == id {
			return parentID, i, true
		}
		if containerID, idx, ok := locateInSequence(el.Children, el.ID, id); ok {
			return containerID, idx, true
		}
	}
	return "", 0, false
}

// Insert places a deep copy of el into the target sequence: the root
// sequence when containerID is empty, otherwise the children of the
// matching container. A nil index appends; any other index is clamped
// into [0, len]. Missing containers and duplicate ids are logged no-ops.
func (s *TreeStore) Insert(el *model.Element, index *int, containerID string) {
	if el == nil {
		return
	}
	s.mu.Lock()
	changed := s.insertLocked(el, index, containerID)
	s.notifyIfChanged(changed)
}

func (s *TreeStore) insertLocked(el *model.Element, index *int, containerID string) bool {
	if el.ID != "" && findInSequence(s.roots, el.ID) != nil {
		s.logger.Warn("Insert skipped, element id already present", "elementID", el.ID, "pageID", s.pageID)
		return false
	}

	seq := &s.roots
	if containerID != "" {
		container := findInSequence(s.roots, containerID)
		if container == nil {
			s.logger.Warn("Insert skipped, container not found", "containerID", containerID, "pageID", s.pageID)
			return false
		}
		seq = &container.Children
	}

	idx := len(*seq)
	if index != nil {
		idx = clampIndex(*index, len(*seq))
	}
	insertAt(seq, el.Clone(), idx)
	return true
}

// Update shallow-merges the patch into the element with the given id.
// Not-found is a logged no-op.
func (s *TreeStore) Update(id string, patch ElementPatch) {
	s.mu.Lock()
	changed := false
	el := findInSequence(s.roots, id)
	if el == nil {
		s.logger.Warn("Update skipped, element not found", "elementID", id, "pageID", s.pageID)
	} else {
		if patch.Content != nil {
			el.Content = *patch.Content
		}
		if patch.Props != nil {
			el.Props = model.MergeProps(el.Props, patch.Props)
		}
		changed = true
	}
	s.notifyIfChanged(changed)
}

// Move reorders an element within a single sequence: it removes the
// element at source and reinserts it at dest. Both indices are
// interpreted against the sequence as it exists when the call is made;
// callers whose destination was computed before removal must first run
// it through AdjustDestinationIndex. Out-of-range sources are logged
// no-ops; dest is clamped.
func (s *TreeStore) Move(source, dest int, containerID string) {
	s.mu.Lock()
	changed := s.moveLocked(source, dest, containerID)
	s.notifyIfChanged(changed)
}

func (s *TreeStore) moveLocked(source, dest int, containerID string) bool {
	seq := &s.roots
	if containerID != "" {
		container := findInSequence(s.roots, containerID)
		if container == nil {
			s.logger.Warn("Move skipped, container not found", "containerID", containerID, "pageID", s.pageID)
			return false
		}
		seq = &container.Children
	}

	if source < 0 || source >= len(*seq) {
		s.logger.Warn("Move skipped, source index out of range", "source", source, "length", len(*seq), "pageID", s.pageID)
		return false
	}
	if source == dest {
		return false
	}

	el := (*seq)[source]
	removeAt(seq, source)
	insertAt(seq, el, clampIndex(dest, len(*seq)))
	return true
}

// Remove deletes the element with the given id wherever it occurs in
// the tree, subtree included. Not-found is a logged no-op.
func (s *TreeStore) Remove(id string) {
	s.mu.Lock()
	changed := removeFromSequence(&s.roots, id)
	if !changed {
		s.logger.Warn("Remove skipped, element not found", "elementID", id, "pageID", s.pageID)
	}
	s.notifyIfChanged(changed)
}

// Reparent moves the element with the given id into a new container at
// the given index as one atomic mutation: the node is detached and
// reattached inside a single lock hold, so no observer ever sees it in
// zero or two places. An empty containerID targets the root sequence.
// Moving a node into itself or its own subtree is rejected.
func (s *TreeStore) Reparent(id, containerID string, index int) error {
	s.mu.Lock()
	err := s.reparentLocked(id, containerID, index)
	s.notifyIfChanged(err == nil)
	return err
}

func (s *TreeStore) reparentLocked(id, containerID string, index int) error {
	node := findInSequence(s.roots, id)
	if node == nil {
		return ErrNotFound
	}
	if containerID != "" {
		if containerID == id || findInSequence(node.Children, containerID) != nil {
			return ErrInvalidMove
		}
	}

	var seq *[]*model.Element
	if containerID == "" {
		seq = &s.roots
	} else {
		container := findInSequence(s.roots, containerID)
		if container == nil {
			return ErrNotFound
		}
		seq = &container.Children
	}

	// Detach first; the caller's index is interpreted against the
	// post-removal layout (the reconciler adjusts same-sequence drops).
	removeFromSequence(&s.roots, id)
	insertAt(seq, node, clampIndex(index, len(*seq)))
	return nil
}

// AdjustDestinationIndex converts a destination index computed against
// a pre-removal layout into one valid after the source element has been
// removed: when the source precedes the destination, every later
// sibling shifts down by one. This is the single home for that
// arithmetic; call sites must not re-derive it.
func AdjustDestinationIndex(source, dest int) int {
	if source < dest {
		return dest - 1
	}
	return dest
}

// notifyIfChanged releases the store lock, then publishes a
// content-changed event when a mutation actually happened. Publishing
// outside the lock lets handlers read the store without deadlocking.
func (s *TreeStore) notifyIfChanged(changed bool) {
	if changed {
		s.dirty = true
	}
	websiteID, pageID := s.websiteID, s.pageID
	s.mu.Unlock()
	if changed && s.bus != nil {
		s.bus.Publish(notify.Event{Type: notify.ContentChanged, WebsiteID: websiteID, PageID: pageID})
	}
}

// --- sequence helpers ---

func clampIndex(idx, length int) int {
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

func insertAt(seq *[]*model.Element, el *model.Element, idx int) {
	*seq = append(*seq, nil)
	copy((*seq)[idx+1:], (*seq)[idx:])
	(*seq)[idx] = el
}

func removeAt(seq *[]*model.Element, idx int) {
	*seq = append((*seq)[:idx], (*seq)[idx+1:]...)
}

// findInSequence walks the sequence depth-first and returns the live
// node with the given id, or nil.
func findInSequence(seq []*model.Element, id string) *model.Element {
	for _, el := range seq {
		if el.ID == id {
			return el
		}
		if found := findInSequence(el.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// removeFromSequence deletes the first node with the given id anywhere
// under seq and reports whether anything was removed.
func removeFromSequence(seq *[]*model.Element, id string) bool {
	for i, el := range *seq {
		if el.ID == id {
			removeAt(seq, i)
			return true
		}
		if removeFromSequence(&el.Children, id) {
			return true
		}
	}
	return false
}
