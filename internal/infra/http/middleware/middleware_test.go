package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/logs"
)

func TestSession(t *testing.T) {
	var got entity.Session
	h := Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = SessionFrom(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("identity headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRepID, "rep-1")
		req.Header.Set(HeaderOrganizationID, "org-1")
		req.Header.Set(HeaderRole, "Manager")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, entity.Session{RepID: "rep-1", OrganizationID: "org-1", Role: entity.RoleManager}, got)
	})

	t.Run("role defaults to rep", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRepID, "rep-1")
		req.Header.Set(HeaderOrganizationID, "org-1")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, entity.RoleRep, got.Role)
	})

	t.Run("missing organization", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRepID, "rep-1")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})
}

func TestRecoverer(t *testing.T) {
	logs.Discard()
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leads/abc", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	var seen bool
	r.With(Metrics).Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = true
		assert.Equal(t, "/ping", routePattern(r))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.True(t, seen)
}
