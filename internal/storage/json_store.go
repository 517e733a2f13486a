package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/pkg/fsutils"
)

// JSONStore implements DocumentStore with one JSON file per website.
// Writes go through a temp-file-and-rename so a crashed save never
// leaves a half-written document behind. The store remembers when it
// last wrote each document so the directory watcher can tell the
// store's own saves apart from external edits.
type JSONStore struct {
	basePath string
	logger   *slog.Logger

	mu         sync.Mutex
	lastWrites map[string]time.Time
}

// NewJSONStore creates a JSONStore rooted at basePath, creating the
// directory if needed.
func NewJSONStore(basePath string, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := fsutils.CreateDir(basePath); err != nil {
		return nil, fmt.Errorf("failed to create document directory '%s': %w", basePath, err)
	}
	return &JSONStore{
		basePath:   basePath,
		logger:     logger,
		lastWrites: make(map[string]time.Time),
	}, nil
}

// RecentlyWritten reports whether this store itself wrote the website's
// document within the given window.
func (s *JSONStore) RecentlyWritten(websiteID string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastWrites[websiteID]
	return ok && time.Since(last) <= window
}

// BasePath returns the directory documents are stored in.
func (s *JSONStore) BasePath() string {
	return s.basePath
}

func (s *JSONStore) documentPath(websiteID string) string {
	return filepath.Join(s.basePath, websiteID+".json")
}

// CreateDocument persists a brand-new website document. Fails if the
// website already has one.
func (s *JSONStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.WebsiteID == "" {
		return fmt.Errorf("website ID cannot be empty")
	}
	path := s.documentPath(doc.WebsiteID)
	if fsutils.FileExists(path) {
		return fmt.Errorf("document for website %s already exists", doc.WebsiteID)
	}
	doc.UpdatedAt = time.Now().UTC()
	return s.write(doc)
}

// LoadDocument reads and decodes a website's document file.
func (s *JSONStore) LoadDocument(ctx context.Context, websiteID string) (*model.Document, error) {
	if websiteID == "" {
		return nil, fmt.Errorf("website ID cannot be empty")
	}
	data, err := os.ReadFile(s.documentPath(websiteID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("website %s: %w", websiteID, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to read document for website %s: %w", websiteID, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document for website %s: %w", websiteID, err)
	}
	return &doc, nil
}

// SaveDocument applies one editing snapshot to the persisted document:
// legacy content tree, active page settings, and the settings patch.
func (s *JSONStore) SaveDocument(ctx context.Context, websiteID string, content []*model.Element, pageSettings *model.PageSettings, patch model.SettingsPatch) error {
	doc, err := s.LoadDocument(ctx, websiteID)
	if err != nil {
		return err
	}

	if content != nil {
		doc.Content = content
	}
	if pageSettings != nil {
		doc.PageSettings = pageSettings
	}
	patch.Apply(&doc.Settings)
	doc.UpdatedAt = time.Now().UTC()

	if err := s.write(doc); err != nil {
		return err
	}
	s.logger.Debug("Saved website document", "websiteID", websiteID, "path", s.documentPath(websiteID))
	return nil
}

// ListWebsiteIDs scans the base directory for *.json document files.
func (s *JSONStore) ListWebsiteIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read document directory %s: %w", s.basePath, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

func (s *JSONStore) write(doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document for website %s: %w", doc.WebsiteID, err)
	}

	// Recorded before the rename lands, so the watcher never sees the
	// filesystem event ahead of the bookkeeping.
	s.mu.Lock()
	s.lastWrites[doc.WebsiteID] = time.Now()
	s.mu.Unlock()

	path := s.documentPath(doc.WebsiteID)
	if err := fsutils.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write document file %s: %w", path, err)
	}
	return nil
}
