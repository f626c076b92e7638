package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vodfetch/internal/app"
	"vodfetch/internal/httpjson"
	"vodfetch/internal/ports"
)

// CatalogHandler exposes the synchronized catalog snapshot: title search and
// per-title entry listings.
type CatalogHandler struct {
	catalog ports.CatalogStore
}

func NewCatalogHandler(catalog ports.CatalogStore) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) Routes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/titles/{id}/entries", h.entries)
	})
}

func (h *CatalogHandler) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing q")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	titles, err := h.catalog.Search(r.Context(), query, limit)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, titles)
}

func (h *CatalogHandler) entries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.Entries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, entries)
}
