package handler

import (
	"net/http"

	"github.com/set-night/chatapp/internal/service"
)

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	models := h.catalog.List(r.Context(), q.Get("search"), service.SortType(q.Get("sort")))
	writeJSON(w, http.StatusOK, models)
}
