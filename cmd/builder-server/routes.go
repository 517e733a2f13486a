package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/nosurf"

	"github.com/ShimmerHandmade/modernbuilder/internal/builder"
	"github.com/ShimmerHandmade/modernbuilder/internal/config"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
)

// application holds the server-wide dependencies the handlers need.
type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.DocumentStore
	manager *builder.Manager
	hub     *notify.Hub
	bus     *notify.Bus
}

// routes builds the HTTP router. Mutating endpoints are CSRF-protected;
// the editor fetches a token from /api/csrf and replays it in the
// X-CSRF-Token header.
func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// The websocket upgrade cannot carry a CSRF token.
	r.Get("/ws/{websiteID}", app.handleWebsocket)
	r.Get("/healthz", app.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(app.csrf)

		r.Get("/api/csrf", app.handleCSRFToken)
		r.Get("/api/websites", app.handleListWebsites)
		r.Post("/api/websites", app.handleCreateWebsite)

		r.Route("/api/websites/{websiteID}", func(r chi.Router) {
			r.Get("/document", app.handleGetDocument)

			r.Get("/pages", app.handleListPages)
			r.Post("/pages/select", app.handleSelectPage)
			r.Put("/pages/settings", app.handleUpdatePageSettings)

			r.Get("/elements", app.handleGetElements)
			r.Post("/elements", app.handleInsertElement)
			r.Patch("/elements/{elementID}", app.handleUpdateElement)
			r.Delete("/elements/{elementID}", app.handleRemoveElement)
			r.Post("/elements/{elementID}/move", app.handleMoveElement)
			r.Post("/elements/{elementID}/reparent", app.handleReparentElement)

			r.Post("/drop", app.handleDrop)

			r.Post("/save", app.handleSave)
			r.Get("/save/status", app.handleSaveStatus)
		})
	})

	return r
}

func (app *application) csrf(next http.Handler) http.Handler {
	handler := nosurf.New(next)
	handler.SetBaseCookie(http.Cookie{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	handler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.Warn("CSRF check failed", "path", r.URL.Path, "method", r.Method)
		writeError(w, http.StatusBadRequest, "invalid CSRF token")
	}))
	return handler
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": nosurf.Token(r)})
}

func (app *application) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	app.hub.ServeWS(w, r, chi.URLParam(r, "websiteID"))
}
