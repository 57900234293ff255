package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

type fakeBroker struct{ closed bool }

func (b fakeBroker) IsClosed() bool { return b.closed }

// TestHealthHandler - dependency status aggregation
func TestHealthHandler(t *testing.T) {
	check := func(h *HealthHandler) (int, HealthResponse) {
		w := httptest.NewRecorder()
		h.Handle(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w.Code, resp
	}

	t.Run("healthy", func(t *testing.T) {
		code, resp := check(NewHealthHandler(fakePinger{}, fakeBroker{}))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "healthy", resp.Dependencies["database"])
		assert.Equal(t, "healthy", resp.Dependencies["rabbitmq"])
	})

	t.Run("unconfigured broker is fine", func(t *testing.T) {
		code, resp := check(NewHealthHandler(fakePinger{}, nil))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "not configured", resp.Dependencies["rabbitmq"])
	})

	t.Run("database down", func(t *testing.T) {
		code, resp := check(NewHealthHandler(fakePinger{err: errors.New("refused")}, nil))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Contains(t, resp.Dependencies["database"], "refused")
	})

	t.Run("broker closed", func(t *testing.T) {
		code, resp := check(NewHealthHandler(fakePinger{}, fakeBroker{closed: true}))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy: connection closed", resp.Dependencies["rabbitmq"])
	})

	t.Run("live", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil, nil).Live(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
