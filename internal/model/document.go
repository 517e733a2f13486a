package model

import "time"

// Page identifies one routable unit of a website. Exactly one page per
// website carries IsHomePage.
type Page struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	IsHomePage bool   `json:"isHomePage"`
}

// PageSettings holds per-page metadata edited alongside the content tree.
type PageSettings struct {
	Title string `json:"title"`
}

// Settings is the multi-page portion of a website document. PagesContent
// and PagesSettings are keyed by Page.ID.
type Settings struct {
	Pages         []Page                  `json:"pages"`
	PagesContent  map[string][]*Element   `json:"pagesContent,omitempty"`
	PagesSettings map[string]PageSettings `json:"pagesSettings,omitempty"`
	Theme         string                  `json:"theme,omitempty"`
	LogoURL       string                  `json:"logoUrl,omitempty"`
}

// Document is the full persisted record for one website.
//
// Content mirrors the home page's element tree. Older storefront
// renderers read only this field, so commits to the home page keep it
// in sync with Settings.PagesContent.
type Document struct {
	WebsiteID    string        `json:"websiteId"`
	Name         string        `json:"name"`
	Content      []*Element    `json:"content"`
	PageSettings *PageSettings `json:"pageSettings,omitempty"`
	Settings     Settings      `json:"settings"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// SettingsPatch carries the subset of Settings a save wants to change.
// Nil fields are left untouched by the store, so a patch is idempotent
// under retry with the same snapshot.
type SettingsPatch struct {
	Pages         []Page                  `json:"pages,omitempty"`
	PagesContent  map[string][]*Element   `json:"pagesContent,omitempty"`
	PagesSettings map[string]PageSettings `json:"pagesSettings,omitempty"`
	Theme         *string                 `json:"theme,omitempty"`
	LogoURL       *string                 `json:"logoUrl,omitempty"`
}

// Apply writes the patch's non-nil fields onto s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Pages != nil {
		s.Pages = p.Pages
	}
	if p.PagesContent != nil {
		s.PagesContent = p.PagesContent
	}
	if p.PagesSettings != nil {
		s.PagesSettings = p.PagesSettings
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.LogoURL != nil {
		s.LogoURL = *p.LogoURL
	}
}

// HomePage returns the page flagged as home, or nil if none is flagged.
func (d *Document) HomePage() *Page {
	for i := range d.Settings.Pages {
		if d.Settings.Pages[i].IsHomePage {
			return &d.Settings.Pages[i]
		}
	}
	return nil
}

// FindPage returns the page with the given id, or nil.
func (d *Document) FindPage(pageID string) *Page {
	for i := range d.Settings.Pages {
		if d.Settings.Pages[i].ID == pageID {
			return &d.Settings.Pages[i]
		}
	}
	return nil
}
