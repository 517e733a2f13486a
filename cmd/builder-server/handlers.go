package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ShimmerHandmade/modernbuilder/internal/builder"
	"github.com/ShimmerHandmade/modernbuilder/internal/document"
	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
	"github.com/ShimmerHandmade/modernbuilder/pkg/ids"
)

// session resolves the editing session for the website in the URL.
func (app *application) session(r *http.Request) (*builder.Session, error) {
	websiteID := chi.URLParam(r, "websiteID")
	return app.manager.Session(r.Context(), websiteID, r.URL.Query().Get("pageId"))
}

// --- Websites ---

type createWebsiteRequest struct {
	Name string `json:"name"`
}

func (app *application) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req createWebsiteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	doc := &model.Document{
		WebsiteID: ids.NewPageID(),
		Name:      req.Name,
		Content:   []*model.Element{},
	}
	document.EnsureRequiredPages(doc, nil)
	if err := app.store.CreateDocument(r.Context(), doc); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.logger.Info("Created website", "websiteID", doc.WebsiteID, "name", doc.Name)
	writeJSON(w, http.StatusCreated, doc)
}

func (app *application) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	idList, err := app.store.ListWebsiteIDs(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if idList == nil {
		idList = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"websiteIds": idList})
}

func (app *application) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := app.store.LoadDocument(r.Context(), chi.URLParam(r, "websiteID"))
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// --- Pages ---

type pageResponse struct {
	Page     model.Page         `json:"page"`
	Settings model.PageSettings `json:"settings"`
	Elements []*model.Element   `json:"elements"`
}

func (app *application) handleListPages(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages":      s.Pages(),
		"activePage": s.ActivePage(),
	})
}

type selectPageRequest struct {
	PageID string `json:"pageId"`
}

func (app *application) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var req selectPageRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := s.SwitchPage(req.PageID)
	writeJSON(w, http.StatusOK, pageResponse{
		Page:     page,
		Settings: s.PageSettings(),
		Elements: s.Tree().Elements(),
	})
}

func (app *application) handleUpdatePageSettings(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var settings model.PageSettings
	if err := readJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.UpdatePageSettings(settings)
	writeJSON(w, http.StatusOK, settings)
}

// --- Elements ---

func (app *application) handleGetElements(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Page:     s.ActivePage(),
		Settings: s.PageSettings(),
		Elements: s.Tree().Elements(),
	})
}

type insertElementRequest struct {
	Type        string         `json:"type"`
	Content     string         `json:"content,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	ContainerID string         `json:"containerId,omitempty"`
	Index       *int           `json:"index,omitempty"`
}

func (app *application) handleInsertElement(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var req insertElementRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	el := &model.Element{
		ID:      ids.NewElementID(),
		Type:    req.Type,
		Content: req.Content,
		Props:   builder.DefaultPropsFor(req.Type, req.Props),
	}
	if builder.IsContainerType(req.Type) {
		el.Children = []*model.Element{}
	}
	s.Tree().Insert(el, req.Index, req.ContainerID)
	writeJSON(w, http.StatusCreated, el)
}

func (app *application) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var patch builder.ElementPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	elementID := chi.URLParam(r, "elementID")
	s.Tree().Update(elementID, patch)

	if el, ok := s.Tree().Find(elementID); ok {
		writeJSON(w, http.StatusOK, el)
		return
	}
	writeError(w, http.StatusNotFound, "element not found")
}

func (app *application) handleRemoveElement(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	s.Tree().Remove(chi.URLParam(r, "elementID"))
	w.WriteHeader(http.StatusNoContent)
}

type moveElementRequest struct {
	NewIndex    int    `json:"newIndex"`
	ContainerID string `json:"containerId,omitempty"`
}

func (app *application) handleMoveElement(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var req moveElementRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	elementID := chi.URLParam(r, "elementID")
	containerID, sourceIndex, ok := s.Tree().Locate(elementID)
	if !ok {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}
	if req.ContainerID != "" && req.ContainerID != containerID {
		writeError(w, http.StatusBadRequest, "element is not in the given container; use reparent")
		return
	}
	s.Tree().Move(sourceIndex, builder.AdjustDestinationIndex(sourceIndex, req.NewIndex), containerID)
	w.WriteHeader(http.StatusNoContent)
}

type reparentElementRequest struct {
	ContainerID string `json:"containerId"`
	Index       int    `json:"index"`
}

func (app *application) handleReparentElement(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var req reparentElementRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.Tree().Reparent(chi.URLParam(r, "elementID"), req.ContainerID, req.Index)
	switch {
	case errors.Is(err, builder.ErrInvalidMove):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, builder.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		app.serverError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Drag and drop ---

type dropRequest struct {
	Payload json.RawMessage    `json:"payload"`
	Target  builder.DropTarget `json:"target"`
}

func (app *application) handleDrop(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	var req dropRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.Reconciler().HandleDrop(req.Payload, req.Target)
	switch {
	case errors.Is(err, builder.ErrMalformedPayload), errors.Is(err, builder.ErrInvalidMove):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		app.serverError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, pageResponse{
			Page:     s.ActivePage(),
			Settings: s.PageSettings(),
			Elements: s.Tree().Elements(),
		})
	}
}

// --- Saving ---

func (app *application) handleSave(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	if err := s.Save(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeSaveStatus(w, s)
}

func (app *application) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	s, err := app.session(r)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	app.writeSaveStatus(w, s)
}

func (app *application) writeSaveStatus(w http.ResponseWriter, s *builder.Session) {
	state, text := s.SaveState()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  state.String(),
		"text":   text,
		"now":    time.Now().UTC(),
		"online": app.hub.ConnectionCount(s.WebsiteID()),
	})
}

// --- Helpers ---

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already gone; nothing useful left to do.
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// storeError maps storage errors onto HTTP statuses.
func (app *application) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "website not found")
		return
	}
	app.serverError(w, r, err)
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
