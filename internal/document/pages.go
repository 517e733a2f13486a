// Package document implements the multi-page model on top of the
// element tree: the required-pages guarantee, active-page selection,
// and moving whole page trees in and out of a website document.
package document

import (
	"strings"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/pkg/fsutils"
	"github.com/ShimmerHandmade/modernbuilder/pkg/ids"
)

// The pages every website must have. Home additionally carries the
// isHomePage flag.
const (
	HomeTitle  = "Home"
	ShopTitle  = "Shop"
	AboutTitle = "About"
)

var requiredPages = []struct {
	title string
	slug  string
}{
	{HomeTitle, "/"},
	{ShopTitle, "/shop"},
	{AboutTitle, "/about"},
}

// EnsureRequiredPages guarantees the document contains Home, Shop and
// About pages, matching existing pages by case-insensitive title.
// Missing pages are created with generated ids and default slugs. The
// isHomePage flag then lands on the page titled "Home" and nowhere
// else; persisted documents are not trusted to have it right, so any
// stray flags on other pages are cleared. Returns whether the document
// was modified, so the caller can decide to persist. Calling it again
// on the result changes nothing.
func EnsureRequiredPages(doc *model.Document, gen ids.Generator) bool {
	newID := ids.NewPageID
	if gen != nil {
		newID = gen.NewID
	}

	changed := false
	for _, required := range requiredPages {
		if findPageByTitle(doc, required.title) == nil {
			doc.Settings.Pages = append(doc.Settings.Pages, model.Page{
				ID:    newID(),
				Title: required.title,
				Slug:  required.slug,
			})
			changed = true
		}
	}

	// Exactly one page carries the home flag.
	home := findPageByTitle(doc, HomeTitle)
	for i := range doc.Settings.Pages {
		isHome := doc.Settings.Pages[i].ID == home.ID
		if doc.Settings.Pages[i].IsHomePage != isHome {
			doc.Settings.Pages[i].IsHomePage = isHome
			changed = true
		}
	}
	return changed
}

// SelectActivePage resolves which page an editing session should open:
// the requested page when it exists, else the home page, else the
// first page. Exactly one branch fires; documents that have been
// through EnsureRequiredPages always have at least one page.
func SelectActivePage(doc *model.Document, requestedID string) model.Page {
	if requestedID != "" {
		if p := doc.FindPage(requestedID); p != nil {
			return *p
		}
	}
	if home := doc.HomePage(); home != nil {
		return *home
	}
	return doc.Settings.Pages[0]
}

// LoadPageContent returns deep copies of the stored element tree and
// settings for a page. Pages that have never been committed yield an
// empty sequence and settings titled after the website.
func LoadPageContent(doc *model.Document, pageID string) ([]*model.Element, model.PageSettings) {
	elements := []*model.Element{}
	if stored, ok := doc.Settings.PagesContent[pageID]; ok {
		elements = model.CloneElements(stored)
	}
	settings, ok := doc.Settings.PagesSettings[pageID]
	if !ok {
		settings = model.PageSettings{Title: doc.Name}
	}
	return elements, settings
}

// CommitPageContent writes a page's element tree and settings back into
// the document. The nested maps are copied before writing so earlier
// snapshots of the document are never aliased by the commit. Commits to
// the home page also refresh the legacy top-level content tree that
// older storefront renderers read.
func CommitPageContent(doc *model.Document, pageID string, elements []*model.Element, settings model.PageSettings) {
	content := make(map[string][]*model.Element, len(doc.Settings.PagesContent)+1)
	for id, tree := range doc.Settings.PagesContent {
		content[id] = model.CloneElements(tree)
	}
	content[pageID] = model.CloneElements(elements)
	doc.Settings.PagesContent = content

	pageSettings := make(map[string]model.PageSettings, len(doc.Settings.PagesSettings)+1)
	for id, ps := range doc.Settings.PagesSettings {
		pageSettings[id] = ps
	}
	pageSettings[pageID] = settings
	doc.Settings.PagesSettings = pageSettings

	if home := doc.HomePage(); home != nil && home.ID == pageID {
		doc.Content = model.CloneElements(elements)
	}
}

// AddPage appends a new page with a slug derived from its title and
// returns it. The first page added to an empty document becomes the
// home page.
func AddPage(doc *model.Document, title string, gen ids.Generator) model.Page {
	newID := ids.NewPageID
	if gen != nil {
		newID = gen.NewID
	}
	page := model.Page{
		ID:         newID(),
		Title:      title,
		Slug:       "/" + fsutils.Slugify(title),
		IsHomePage: len(doc.Settings.Pages) == 0,
	}
	doc.Settings.Pages = append(doc.Settings.Pages, page)
	return page
}

func findPageByTitle(doc *model.Document, title string) *model.Page {
	for i := range doc.Settings.Pages {
		if strings.EqualFold(doc.Settings.Pages[i].Title, title) {
			return &doc.Settings.Pages[i]
		}
	}
	return nil
}
