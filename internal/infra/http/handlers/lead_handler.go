package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

type LeadHandler struct {
	ClaimUC   *usecase.ClaimLeadUseCase
	ReleaseUC *usecase.ReleaseLeadUseCase
	SwapUC    *usecase.SwapLeadUseCase
	CreateUC  *usecase.CreateLeadUseCase
	Events    queue.EventPublisher
	Limiter   *RateLimiter
}

func NewLeadHandler(
	claim *usecase.ClaimLeadUseCase,
	release *usecase.ReleaseLeadUseCase,
	swap *usecase.SwapLeadUseCase,
	create *usecase.CreateLeadUseCase,
	events queue.EventPublisher,
	limiter *RateLimiter,
) *LeadHandler {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &LeadHandler{
		ClaimUC:   claim,
		ReleaseUC: release,
		SwapUC:    swap,
		CreateUC:  create,
		Events:    events,
		Limiter:   limiter,
	}
}

type ReleaseLeadResponse struct {
	Lead *entity.Lead `json:"company"`
}

type SwapLeadRequest struct {
	ReleaseLeadID string `json:"release_lead_id"`
}

// Claim handles POST /api/leads/{id}/claim.
func (h *LeadHandler) Claim(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok || !h.allow(w, sess) {
		return
	}

	out, err := h.ClaimUC.Execute(r.Context(), sess, chi.URLParam(r, "id"))
	middleware.RecordClaim(resultLabel(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r.Context(), queue.NewLeadEvent(queue.LeadClaimed, out.Lead, sess.RepID))
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Release handles POST /api/leads/{id}/release.
func (h *LeadHandler) Release(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}

	lead, err := h.ReleaseUC.Execute(r.Context(), sess, chi.URLParam(r, "id"))
	middleware.RecordRelease(resultLabel(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r.Context(), queue.NewLeadEvent(queue.LeadReleased, lead, sess.RepID))
	middleware.WriteJSON(w, http.StatusOK, ReleaseLeadResponse{Lead: lead})
}

// Swap handles POST /api/leads/{id}/swap: release body.release_lead_id, then claim {id}.
func (h *LeadHandler) Swap(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok || !h.allow(w, sess) {
		return
	}

	var req SwapLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.SwapUC.Execute(r.Context(), sess, req.ReleaseLeadID, chi.URLParam(r, "id"))
	middleware.RecordClaim(resultLabel(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.RecordRelease("ok")
	h.publish(r.Context(), queue.NewLeadEvent(queue.LeadReleased, out.Released, sess.RepID))
	h.publish(r.Context(), queue.NewLeadEvent(queue.LeadClaimed, out.Claimed.Lead, sess.RepID))
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Create handles POST /api/leads.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}

	var input usecase.CreateLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.Claim && !h.allow(w, sess) {
		return
	}

	lead, err := h.CreateUC.Execute(r.Context(), sess, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r.Context(), queue.NewLeadEvent(queue.LeadCreated, lead, sess.RepID))
	if lead.IsOwned() {
		middleware.RecordClaim("ok")
		h.publish(r.Context(), queue.NewLeadEvent(queue.LeadClaimed, lead, sess.RepID))
	}
	middleware.WriteJSON(w, http.StatusCreated, lead)
}

// recordSwap counts a failed swap against the step that failed. A release that
// was rolled back is not counted.
func recordSwap(err error) {
	var oe *usecase.OperationError
	switch {
	case err == nil:
		middleware.RecordRelease("ok")
		middleware.RecordClaim("ok")
	case errors.As(err, &oe) && oe.Name == usecase.SwapStepRelease:
		middleware.RecordRelease(resultLabel(err))
	default:
		middleware.RecordClaim(resultLabel(err))
	}
}

func (h *LeadHandler) allow(w http.ResponseWriter, sess entity.Session) bool {
	if h.Limiter.Allow(sess.OrganizationID + ":" + sess.RepID) {
		return true
	}
	middleware.RecordClaim("rate_limited")
	middleware.WriteProblem(w, http.StatusTooManyRequests, "Too Many Requests",
		"Too many claims. Please try again later.", map[string]any{"code": "RATE_LIMITED"})
	return false
}

// publish is fire-and-forget; a broker outage never fails the request.
func (h *LeadHandler) publish(ctx context.Context, ev queue.LeadEvent) {
	if err := h.Events.PublishLeadEvent(ctx, ev); err != nil {
		middleware.RecordEventPublishError()
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"event": ev.Type,
			"lead":  ev.LeadID,
		}).Warn("failed to publish lead event")
	}
}
