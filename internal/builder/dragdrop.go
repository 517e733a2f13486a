package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/pkg/ids"
)

// ErrMalformedPayload reports drag data that could not be interpreted.
// The tree is left unchanged; callers surface it as a non-fatal
// notification.
var ErrMalformedPayload = errors.New("malformed drag payload")

// DropHalf says which half of the target element's bounding box the
// pointer was in when the drop happened.
type DropHalf string

const (
	// DropBefore means the pointer was in the top half: insert before
	// the target element.
	DropBefore DropHalf = "before"
	// DropAfter means the pointer was in the bottom half: insert after
	// the target element.
	DropAfter DropHalf = "after"
)

// DragPayload is the serialized description travelling with a drag
// gesture. A present ID means "relocate this existing element";
// otherwise the payload describes a new element from the palette.
type DragPayload struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Content     string         `json:"content,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	ParentID    string         `json:"parentId,omitempty"`
	SourceIndex *int           `json:"sourceIndex,omitempty"`
}

// DropTarget is the editor's resolved hit-test result: the container
// receiving the drop, and optionally the sibling element the pointer
// was over. An empty ElementID means no specific position resolved and
// the drop appends to the container (or the root sequence when
// ContainerID is also empty).
type DropTarget struct {
	ContainerID string   `json:"containerId,omitempty"`
	ElementID   string   `json:"elementId,omitempty"`
	Index       int      `json:"index"`
	Half        DropHalf `json:"half,omitempty"`
}

// Reconciler interprets drop gestures against the tree store and
// invokes the matching mutation.
type Reconciler struct {
	tree   *TreeStore
	newID  func() string
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given tree store. A nil
// idGen falls back to the default element id generator.
func NewReconciler(tree *TreeStore, idGen ids.Generator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	newID := ids.NewElementID
	if idGen != nil {
		newID = idGen.NewID
	}
	return &Reconciler{tree: tree, newID: newID, logger: logger}
}

// HandleDrop decodes a raw drag payload and applies the drop. Returns
// ErrMalformedPayload (wrapped) when the data is unparseable; the tree
// is untouched in that case.
func (r *Reconciler) HandleDrop(raw []byte, target DropTarget) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty drag data", ErrMalformedPayload)
	}
	var payload DragPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return r.Drop(payload, target)
}

// Drop applies a decoded drop gesture:
//
//  1. Payload without an id: build a fresh element with type defaults
//     merged under the payload's overrides, and insert it at the
//     resolved position (append when no position resolved).
//  2. Existing element, same container: reorder with the destination
//     adjusted for the removal shift.
//  3. Existing element, different container: atomic reparent.
//
// Dropping an element onto itself is a no-op. A payload referencing an
// element that no longer exists is a logged no-op.
func (r *Reconciler) Drop(payload DragPayload, target DropTarget) error {
	if payload.ID == "" && payload.Type == "" {
		return fmt.Errorf("%w: neither id nor type present", ErrMalformedPayload)
	}

	if payload.ID == "" {
		r.insertNew(payload, target)
		return nil
	}

	if payload.ID == target.ElementID || payload.ID == target.ContainerID {
		return nil
	}

	return r.relocate(payload, target)
}

// insertNew constructs a palette element and inserts it.
func (r *Reconciler) insertNew(payload DragPayload, target DropTarget) {
	el := &model.Element{
		ID:      r.newID(),
		Type:    payload.Type,
		Content: payload.Content,
		Props:   DefaultPropsFor(payload.Type, payload.Props),
	}
	if IsContainerType(payload.Type) {
		el.Children = []*model.Element{}
	}

	var index *int
	if target.ElementID != "" {
		idx := resolveInsertionIndex(target)
		index = &idx
	}
	r.tree.Insert(el, index, target.ContainerID)
	r.logger.Debug("Inserted new element from palette", "elementID", el.ID, "type", el.Type, "containerID", target.ContainerID)
}

// relocate moves an existing element to the drop position. The tree is
// the authority on the element's current location; the payload's
// parentId/sourceIndex are only hints.
func (r *Reconciler) relocate(payload DragPayload, target DropTarget) error {
	sourceContainer, sourceIndex, ok := r.tree.Locate(payload.ID)
	if !ok {
		r.logger.Warn("Drop skipped, dragged element no longer exists", "elementID", payload.ID)
		return nil
	}

	if sourceContainer == target.ContainerID {
		dest := 1 << 30 // append; the store clamps after removal
		if target.ElementID != "" {
			dest = AdjustDestinationIndex(sourceIndex, resolveInsertionIndex(target))
		}
		r.tree.Move(sourceIndex, dest, sourceContainer)
		return nil
	}

	index := 1 << 30 // append unless a specific position resolved
	if target.ElementID != "" {
		index = resolveInsertionIndex(target)
	}
	err := r.tree.Reparent(payload.ID, target.ContainerID, index)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn("Drop skipped, container not found", "elementID", payload.ID, "containerID", target.ContainerID)
		return nil
	}
	return err
}

// resolveInsertionIndex maps the drop-target half onto an insertion
// index: top half inserts before the target element, bottom half after.
func resolveInsertionIndex(target DropTarget) int {
	if target.Half == DropAfter {
		return target.Index + 1
	}
	return target.Index
}
