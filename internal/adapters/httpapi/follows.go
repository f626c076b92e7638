package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vodfetch/internal/app"
	"vodfetch/internal/httpjson"
	"vodfetch/internal/ports"
)

type FollowsHandler struct {
	follows *app.FollowService
}

func NewFollowsHandler(follows *app.FollowService) *FollowsHandler {
	return &FollowsHandler{follows: follows}
}

func (h *FollowsHandler) Routes(r chi.Router) {
	r.Route("/follows", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/check", h.check)
	})
}

type createFollowRequest struct {
	SeriesID string `json:"seriesId"`
	Label    string `json:"label,omitempty"`
}

func (h *FollowsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createFollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	follow, err := h.follows.Create(r.Context(), req.SeriesID, req.Label)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrConflict):
			httpjson.WriteError(w, http.StatusConflict, "series already followed")
		case errors.Is(err, app.ErrNotFound):
			httpjson.WriteError(w, http.StatusNotFound, "series not in catalog")
		default:
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	httpjson.Write(w, http.StatusCreated, follow)
}

func (h *FollowsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	follows, err := h.follows.List(r.Context(), limit)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, follows)
}

func (h *FollowsHandler) get(w http.ResponseWriter, r *http.Request) {
	follow, err := h.follows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, follow)
}

func (h *FollowsHandler) update(w http.ResponseWriter, r *http.Request) {
	var dto app.FollowDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	dto.ID = chi.URLParam(r, "id")

	follow, err := h.follows.Update(r.Context(), dto)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, follow)
}

func (h *FollowsHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.follows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FollowsHandler) check(w http.ResponseWriter, r *http.Request) {
	enqueue := r.URL.Query().Get("enqueue") != "false"
	res, err := h.follows.CheckOnce(r.Context(), chi.URLParam(r, "id"), enqueue)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}
