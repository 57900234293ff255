package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
)

const HeaderCronSecret = "X-Cron-Secret"

// SweepHandler lets an external scheduler trigger the inactivity sweep.
type SweepHandler struct {
	Runner queue.SweepRunner
	Secret string
	Now    func() time.Time
}

func NewSweepHandler(runner queue.SweepRunner, secret string) *SweepHandler {
	return &SweepHandler{Runner: runner, Secret: secret, Now: time.Now}
}

// Handle serves POST /api/cron/inactive.
func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Secret == "" {
		middleware.WriteProblem(w, http.StatusNotFound, "Not Found", "cron trigger is disabled", nil)
		return
	}
	got := r.Header.Get(HeaderCronSecret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		middleware.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid cron secret", nil)
		return
	}

	report, err := h.Runner.Run(r.Context(), "cron", h.Now())
	if report == nil {
		writeError(w, r, err)
		return
	}
	// Per-organization failures are listed in the report body
	middleware.WriteJSON(w, http.StatusOK, report)
}
