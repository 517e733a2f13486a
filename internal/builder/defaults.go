package builder

import "github.com/ShimmerHandmade/modernbuilder/internal/model"

// defaultProps maps element types to the props a freshly dropped
// element starts with. Types absent from the map start with no props.
// Caller-supplied overrides from the palette payload win key by key.
var defaultProps = map[string]map[string]any{
	"navbar": {
		"siteName": "My Website",
		"links": []any{
			map[string]any{"text": "Home", "url": "/"},
			map[string]any{"text": "Shop", "url": "/shop"},
			map[string]any{"text": "About", "url": "/about"},
		},
	},
	"hero": {
		"heading":    "Welcome to your new website",
		"subheading": "Start building by dragging elements onto the page",
		"buttonText": "Shop Now",
		"buttonLink": "/shop",
	},
	"section": {
		"padding":         "medium",
		"backgroundColor": "transparent",
	},
	"heading": {
		"level": float64(2),
	},
	"text": {
		"align": "left",
	},
	"image": {
		"src": "",
		"alt": "",
	},
	"button": {
		"text":    "Click me",
		"url":     "#",
		"variant": "primary",
	},
	"productsList": {
		"columns":        float64(3),
		"itemsPerPage":   float64(12),
		"showPagination": true,
		"sortBy":         "newest",
		"categoryFilter": "all",
	},
	"footer": {
		"text":        "© My Website",
		"showSocials": true,
	},
}

// containerTypes lists the element types whose children sequence can
// receive drops.
var containerTypes = map[string]bool{
	"section": true,
	"hero":    true,
	"footer":  true,
}

// IsContainerType reports whether elements of this type accept children.
func IsContainerType(elementType string) bool {
	return containerTypes[elementType]
}

// DefaultPropsFor returns a fresh copy of the default props for the
// given element type, with the supplied overrides merged on top.
func DefaultPropsFor(elementType string, overrides map[string]any) map[string]any {
	props := map[string]any{}
	if defaults, ok := defaultProps[elementType]; ok {
		props = model.MergeProps(props, defaults)
	}
	return model.MergeProps(props, overrides)
}
