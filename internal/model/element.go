package model

// Element is a single node in a page's content tree. The element type
// determines which renderer and editor panel consume the node; Props is
// the open, type-specific configuration bag.
type Element struct {
	ID       string         `json:"id"`                 // Unique across the whole document, assigned at creation
	Type     string         `json:"type"`               // e.g. "navbar", "section", "heading", "productsList"
	Content  string         `json:"content,omitempty"`  // Plain-text payload for leaf text-like types
	Props    map[string]any `json:"props,omitempty"`    // Styling, behaviour flags, data-source parameters
	Children []*Element     `json:"children,omitempty"` // Ordered; renders top-to-bottom
}

// Clone returns a deep copy of the element and its entire subtree.
// Props values are copied recursively so the clone shares no mutable
// state with the original.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		ID:      e.ID,
		Type:    e.Type,
		Content: e.Content,
	}
	if e.Props != nil {
		out.Props = clonePropsMap(e.Props)
	}
	if e.Children != nil {
		out.Children = CloneElements(e.Children)
	}
	return out
}

// CloneElements deep-copies an ordered element sequence.
func CloneElements(elements []*Element) []*Element {
	if elements == nil {
		return nil
	}
	out := make([]*Element, len(elements))
	for i, el := range elements {
		out[i] = el.Clone()
	}
	return out
}

// clonePropsMap recursively copies a props map, descending into nested
// maps and slices. Scalar values are shared, which is safe because they
// are immutable.
func clonePropsMap(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = clonePropValue(v)
	}
	return out
}

func clonePropValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clonePropsMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = clonePropValue(item)
		}
		return out
	default:
		return v
	}
}

// MergeProps shallow-merges src into dst key by key and returns dst.
// Nested maps present in both are merged one level deep; any other
// collision is overwritten by src. A nil dst is allocated on demand.
func MergeProps(dst, src map[string]any) map[string]any {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				for nk, nv := range srcMap {
					dstMap[nk] = clonePropValue(nv)
				}
				continue
			}
		}
		dst[k] = clonePropValue(v)
	}
	return dst
}
