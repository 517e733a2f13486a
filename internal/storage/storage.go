// Package storage persists website documents. The DocumentStore
// interface is deliberately narrow so implementations (JSON files,
// SQLite) can be swapped without touching the editing core.
package storage

import (
	"context"
	"errors"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
)

// ErrDocumentNotFound reports a websiteID with no persisted document.
var ErrDocumentNotFound = errors.New("website document not found")

// DocumentStore defines the persistence operations the builder needs.
// SaveDocument must be idempotent under retry with the same snapshot:
// saving the same content twice leaves the same document persisted.
type DocumentStore interface {
	// CreateDocument persists a brand-new website document.
	CreateDocument(ctx context.Context, doc *model.Document) error

	// LoadDocument retrieves the full document for a website.
	LoadDocument(ctx context.Context, websiteID string) (*model.Document, error)

	// SaveDocument flushes one editing snapshot: the active page's
	// element tree and settings plus a patch over the document's
	// multi-page settings. Fields absent from the patch are untouched.
	SaveDocument(ctx context.Context, websiteID string, content []*model.Element, pageSettings *model.PageSettings, patch model.SettingsPatch) error

	// ListWebsiteIDs returns the ids of all persisted websites.
	ListWebsiteIDs(ctx context.Context) ([]string, error)
}
