package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
)

const websitesSchema = `
CREATE TABLE IF NOT EXISTS websites (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    content       TEXT NOT NULL DEFAULT '[]',
    page_settings TEXT,
    settings      TEXT NOT NULL DEFAULT '{}',
    updated_at    TIMESTAMP NOT NULL
);`

// SQLiteStore implements DocumentStore on a local SQLite database. The
// document's JSON sub-structures are stored as serialized columns; the
// store never needs to query inside them.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath
// and ensures the schema exists.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	if _, err := db.Exec(websitesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create websites table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateDocument inserts a brand-new website row.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.WebsiteID == "" {
		return fmt.Errorf("website ID cannot be empty")
	}
	contentJSON, settingsJSON, pageSettingsJSON, err := marshalDocumentColumns(doc)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO websites (id, name, content, page_settings, settings, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.WebsiteID, doc.Name, contentJSON, pageSettingsJSON, settingsJSON, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document for website %s: %w", doc.WebsiteID, err)
	}
	return nil
}

// LoadDocument reads one website row and decodes its JSON columns.
func (s *SQLiteStore) LoadDocument(ctx context.Context, websiteID string) (*model.Document, error) {
	if websiteID == "" {
		return nil, fmt.Errorf("website ID cannot be empty")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, page_settings, settings, updated_at FROM websites WHERE id = ?`, websiteID)

	var (
		doc              model.Document
		contentJSON      string
		settingsJSON     string
		pageSettingsJSON sql.NullString
	)
	err := row.Scan(&doc.WebsiteID, &doc.Name, &contentJSON, &pageSettingsJSON, &settingsJSON, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("website %s: %w", websiteID, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document for website %s: %w", websiteID, err)
	}

	if err := json.Unmarshal([]byte(contentJSON), &doc.Content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content for website %s: %w", websiteID, err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &doc.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings for website %s: %w", websiteID, err)
	}
	if pageSettingsJSON.Valid && pageSettingsJSON.String != "" {
		var ps model.PageSettings
		if err := json.Unmarshal([]byte(pageSettingsJSON.String), &ps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page settings for website %s: %w", websiteID, err)
		}
		doc.PageSettings = &ps
	}
	return &doc, nil
}

// SaveDocument applies one editing snapshot inside a transaction:
// read the current row, merge the patch, write it back.
func (s *SQLiteStore) SaveDocument(ctx context.Context, websiteID string, content []*model.Element, pageSettings *model.PageSettings, patch model.SettingsPatch) error {
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

	contentJSON, settingsJSON, pageSettingsJSON, err := marshalDocumentColumns(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET name = ?, content = ?, page_settings = ?, settings = ?, updated_at = ? WHERE id = ?`,
		doc.Name, contentJSON, pageSettingsJSON, settingsJSON, doc.UpdatedAt, websiteID)
	if err != nil {
		return fmt.Errorf("failed to save document for website %s: %w", websiteID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("website %s: %w", websiteID, ErrDocumentNotFound)
	}
	s.logger.Debug("Saved website document", "websiteID", websiteID)
	return nil
}

// ListWebsiteIDs returns the ids of all stored websites.
func (s *SQLiteStore) ListWebsiteIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM websites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan website id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func marshalDocumentColumns(doc *model.Document) (content, settings string, pageSettings sql.NullString, err error) {
	contentBytes, err := json.Marshal(doc.Content)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("failed to marshal content for website %s: %w", doc.WebsiteID, err)
	}
	settingsBytes, err := json.Marshal(doc.Settings)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("failed to marshal settings for website %s: %w", doc.WebsiteID, err)
	}
	if doc.PageSettings != nil {
		psBytes, err := json.Marshal(doc.PageSettings)
		if err != nil {
			return "", "", sql.NullString{}, fmt.Errorf("failed to marshal page settings for website %s: %w", doc.WebsiteID, err)
		}
		pageSettings = sql.NullString{String: string(psBytes), Valid: true}
	}
	return string(contentBytes), string(settingsBytes), pageSettings, nil
}
