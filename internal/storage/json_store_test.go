package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
)

// sampleDocument builds a minimal two-page website document.
func sampleDocument(websiteID, name string) *model.Document {
	return &model.Document{
		WebsiteID: websiteID,
		Name:      name,
		Content:   []*model.Element{{ID: "e1", Type: "hero"}},
		Settings: model.Settings{
			Pages: []model.Page{
				{ID: "p1", Title: "Home", Slug: "/", IsHomePage: true},
				{ID: "p2", Title: "Shop", Slug: "/shop"},
			},
			PagesContent: map[string][]*model.Element{
				"p1": {{ID: "e1", Type: "hero"}},
			},
		},
	}
}

func newTestJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "websites"), nil)
	require.NoError(t, err)
	return store
}

func TestNewJSONStoreCreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "websites")
	store, err := NewJSONStore(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, store.BasePath())

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateAndLoadDocument(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()

	doc := sampleDocument("site-1", "My Shop")
	require.NoError(t, store.CreateDocument(ctx, doc))
	assert.False(t, doc.UpdatedAt.IsZero())

	loaded, err := store.LoadDocument(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "My Shop", loaded.Name)
	require.Len(t, loaded.Settings.Pages, 2)
	assert.Equal(t, "p1", loaded.Settings.Pages[0].ID)
	require.Len(t, loaded.Settings.PagesContent["p1"], 1)
	assert.Equal(t, "hero", loaded.Settings.PagesContent["p1"][0].Type)
}

func TestCreateDocumentRejectsDuplicates(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-1", "First")))
	err := store.CreateDocument(ctx, sampleDocument("site-1", "Second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoadDocumentNotFound(t *testing.T) {
	store := newTestJSONStore(t)
	_, err := store.LoadDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSaveDocumentAppliesSnapshot(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-1", "My Shop")))

	theme := "dark"
	content := []*model.Element{{ID: "e2", Type: "heading", Content: "Hello"}}
	err := store.SaveDocument(ctx, "site-1", content,
		&model.PageSettings{Title: "Homepage"},
		model.SettingsPatch{
			PagesContent: map[string][]*model.Element{"p1": content},
			Theme:        &theme,
		})
	require.NoError(t, err)

	loaded, err := store.LoadDocument(ctx, "site-1")
	require.NoError(t, err)
	require.Len(t, loaded.Content, 1)
	assert.Equal(t, "e2", loaded.Content[0].ID)
	require.NotNil(t, loaded.PageSettings)
	assert.Equal(t, "Homepage", loaded.PageSettings.Title)
	assert.Equal(t, "dark", loaded.Settings.Theme)
	// Untouched fields survive the patch.
	require.Len(t, loaded.Settings.Pages, 2)
	assert.Equal(t, "My Shop", loaded.Name)
}

func TestSaveDocumentNilFieldsLeaveDocumentUntouched(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-1", "My Shop")))

	require.NoError(t, store.SaveDocument(ctx, "site-1", nil, nil, model.SettingsPatch{}))

	loaded, err := store.LoadDocument(ctx, "site-1")
	require.NoError(t, err)
	require.Len(t, loaded.Content, 1)
	assert.Equal(t, "e1", loaded.Content[0].ID)
	assert.Len(t, loaded.Settings.Pages, 2)
}

func TestSaveDocumentMissingWebsite(t *testing.T) {
	store := newTestJSONStore(t)
	err := store.SaveDocument(context.Background(), "missing", nil, nil, model.SettingsPatch{})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestListWebsiteIDs(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()

	ids, err := store.ListWebsiteIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-a", "A")))
	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-b", "B")))

	// Stray files in the directory are not documents.
	require.NoError(t, os.WriteFile(filepath.Join(store.BasePath(), ".hidden.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.BasePath(), "notes.txt"), []byte("x"), 0644))

	ids, err = store.ListWebsiteIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"site-a", "site-b"}, ids)
}

func TestWriteIsAtomicOnDisk(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, sampleDocument("site-1", "My Shop")))

	// No temp files left behind after a save.
	require.NoError(t, store.SaveDocument(ctx, "site-1", nil, nil, model.SettingsPatch{}))
	entries, err := os.ReadDir(store.BasePath())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "site-1.json", entries[0].Name())
}
