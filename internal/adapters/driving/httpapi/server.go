// Package httpapi exposes the ingestion, feed, and search services
// over a JSON HTTP API. It is a thin driving adapter: request
// decoding, owner resolution, and error-to-status mapping live here;
// all behaviour belongs to the core services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
)

// ownerHeader carries the acting owner identity. Requests without it
// are rejected; the API has no anonymous surface.
const ownerHeader = "X-Feedvault-Owner"

// Deps holds the services the router exposes.
type Deps struct {
	Ingestion driving.IngestionService
	Feeds     driving.FeedService
	Search    driving.SearchService
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requireOwner)

	h := &handler{deps: deps}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/feeds", h.ingestFile)
		r.Post("/feeds/text", h.ingestText)
		r.Get("/feeds", h.listFeeds)
		r.Get("/feeds/deleted", h.listDeleted)
		r.Get("/feeds/{feedID}", h.getContent)
		r.Delete("/feeds/{feedID}", h.deleteFeed)
		r.Post("/feeds/{feedID}/restore", h.restoreFeed)
		r.Get("/feeds/{feedID}/versions", h.listVersions)
		r.Get("/feeds/{feedID}/versions/{version}", h.getVersion)
		r.Get("/feeds/{feedID}/audit", h.auditTrail)
		r.Get("/audit", h.actorTrail)
		r.Post("/reindex", h.reindex)
		r.Get("/search", h.search)
	})

	return r
}

// requireOwner rejects requests that do not identify an owner.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(ownerHeader) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func owner(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}
