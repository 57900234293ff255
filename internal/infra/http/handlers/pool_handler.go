package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

type PoolHandler struct {
	PoolUC     *usecase.ListPoolUseCase
	OwnedUC    *usecase.ListOwnedUseCase
	CapacityUC *usecase.CapacityStatusUseCase
}

func NewPoolHandler(pool *usecase.ListPoolUseCase, owned *usecase.ListOwnedUseCase, capacity *usecase.CapacityStatusUseCase) *PoolHandler {
	return &PoolHandler{PoolUC: pool, OwnedUC: owned, CapacityUC: capacity}
}

// Pool handles GET /api/pool.
func (h *PoolHandler) Pool(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	q, err := parsePoolQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.PoolUC.Execute(r.Context(), sess, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// Owned handles GET /api/reps/{repId}/leads and GET /api/me/leads.
func (h *PoolHandler) Owned(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	q, err := parsePoolQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.OwnedUC.Execute(r.Context(), sess, chi.URLParam(r, "repId"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// Capacity handles GET /api/me/capacity.
func (h *PoolHandler) Capacity(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}

	u, err := h.CapacityUC.Execute(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, u)
}

func parsePoolQuery(r *http.Request) (usecase.PoolQuery, error) {
	v := r.URL.Query()
	q := usecase.PoolQuery{
		Search:    v.Get("search"),
		Status:    v.Get("status"),
		Commodity: v.Get("commodity"),
		Equipment: v.Get("equipment"),
		Geography: v.Get("geography"),
		Tag:       v.Get("tag"),
	}

	switch strings.ToLower(v.Get("recent")) {
	case "", "0", "false":
	case "1", "true":
		q.RecentlyReleased = true
	default:
		return q, usecase.NewValidationError("validation failed: recent must be true or false")
	}

	var err error
	if q.Page, err = intParam(v.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(v.Get("page_size"), "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, usecase.NewValidationError("validation failed: " + name + " must be a non-negative integer")
	}
	return n, nil
}
