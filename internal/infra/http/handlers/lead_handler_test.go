package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

func eventOfType(t queue.EventType) any {
	return mock.MatchedBy(func(ev queue.LeadEvent) bool { return ev.Type == t })
}

// TestLeadHandler_Claim - claim outcomes and their HTTP mapping
func TestLeadHandler_Claim(t *testing.T) {
	t.Run("claims an unowned lead", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadClaimed)).Return(nil).Once()

		w := s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var out usecase.ClaimLeadOutput
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "lead-1", out.Lead.ID)
		require.NotNil(t, out.Lead.OwnerRepID)
		assert.Equal(t, "alice", *out.Lead.OwnerRepID)
		assert.Equal(t, 1, out.CurrentCount)
		assert.Equal(t, 150, out.LeadCap)
		s.events.AssertExpectations(t)
	})

	t.Run("unknown lead is 404", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)

		w := s.do(alice, http.MethodPost, "/api/leads/missing/claim", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, usecase.CodeNotFound, decodeProblem(t, w).Extra["code"])
		s.events.AssertNotCalled(t, "PublishLeadEvent", mock.Anything, mock.Anything)
	})

	t.Run("another organization's lead is 404", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-x", "org-2")

		w := s.do(alice, http.MethodPost, "/api/leads/lead-x/claim", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		stored, _ := s.store.Lead("lead-x")
		assert.Nil(t, stored.OwnerRepID)
	})

	t.Run("owned lead is 409 already claimed", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		bob := s.rep("bob", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(bob, http.MethodPost, "/api/leads/lead-1/claim", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, usecase.CodeAlreadyClaimed, decodeProblem(t, w).Extra["code"])
	})

	t.Run("rep at cap is 409 with count and cap", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, intPtr(1))
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/claim", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		p := decodeProblem(t, w)
		assert.Equal(t, usecase.CodeCapacityExceeded, p.Extra["code"])
		assert.EqualValues(t, 1, p.Extra["count"])
		assert.EqualValues(t, 1, p.Extra["cap"])
		assert.Contains(t, p.Detail, "1/1")
	})

	t.Run("missing identity is 401", func(t *testing.T) {
		s := newTestServer(t)
		s.lead("lead-1", "org-1")

		w := s.do(entity.Session{}, http.MethodPost, "/api/leads/lead-1/claim", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("publish failure does not fail the claim", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		w := s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rate limited claims are 429", func(t *testing.T) {
		s := newTestServer(t)
		s.limiter.limit = 1
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/claim", nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "RATE_LIMITED", decodeProblem(t, w).Extra["code"])
		stored, _ := s.store.Lead("lead-2")
		assert.Nil(t, stored.OwnerRepID)
	})
}

// TestLeadHandler_Release - release by owner and by others
func TestLeadHandler_Release(t *testing.T) {
	t.Run("owner releases", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadClaimed)).Return(nil).Once()
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadReleased)).Return(nil).Once()

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(alice, http.MethodPost, "/api/leads/lead-1/release", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var out ReleaseLeadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Nil(t, out.Lead.OwnerRepID)
		require.NotNil(t, out.Lead.ReleasedAt)
		assert.True(t, out.Lead.ReleasedAt.Equal(t0))
		s.events.AssertExpectations(t)
	})

	t.Run("non-owner is 403", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		bob := s.rep("bob", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(bob, http.MethodPost, "/api/leads/lead-1/release", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, usecase.CodeNotOwned, decodeProblem(t, w).Extra["code"])
		stored, _ := s.store.Lead("lead-1")
		require.NotNil(t, stored.OwnerRepID)
		assert.Equal(t, "alice", *stored.OwnerRepID)
	})
}

// TestLeadHandler_Swap - release-then-claim in one request
func TestLeadHandler_Swap(t *testing.T) {
	t.Run("rep at cap swaps one lead for another", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, intPtr(1))
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/swap", SwapLeadRequest{ReleaseLeadID: "lead-1"})

		require.Equal(t, http.StatusOK, w.Code)
		var out usecase.SwapLeadOutput
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "lead-1", out.Released.ID)
		assert.Equal(t, "lead-2", out.Claimed.Lead.ID)

		released, _ := s.store.Lead("lead-1")
		assert.Nil(t, released.OwnerRepID)
		claimed, _ := s.store.Lead("lead-2")
		require.NotNil(t, claimed.OwnerRepID)
		assert.Equal(t, "alice", *claimed.OwnerRepID)
	})

	t.Run("failed claim gives the released lead back", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		bob := s.rep("bob", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)

		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)
		require.Equal(t, http.StatusOK, s.do(bob, http.MethodPost, "/api/leads/lead-2/claim", nil).Code)
		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/swap", SwapLeadRequest{ReleaseLeadID: "lead-1"})

		assert.Equal(t, http.StatusConflict, w.Code)
		kept, _ := s.store.Lead("lead-1")
		require.NotNil(t, kept.OwnerRepID)
		assert.Equal(t, "alice", *kept.OwnerRepID)
	})

	t.Run("failed release is counted as a release", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		releases := `lead_releases_total{result="not_owned"}`
		claims := `lead_claims_total{result="not_owned"}`
		releasesBefore, claimsBefore := s.counter(t, releases), s.counter(t, claims)

		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/swap", SwapLeadRequest{ReleaseLeadID: "lead-1"})

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, releasesBefore+1, s.counter(t, releases))
		assert.Equal(t, claimsBefore, s.counter(t, claims))
		s.events.AssertNotCalled(t, "PublishLeadEvent", mock.Anything, mock.Anything)
	})

	t.Run("body uses snake_case", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.lead("lead-1", "org-1")
		s.lead("lead-2", "org-1")
		s.events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(nil)
		require.Equal(t, http.StatusOK, s.do(alice, http.MethodPost, "/api/leads/lead-1/claim", nil).Code)

		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/swap", map[string]string{"release_lead_id": "lead-1"})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid body is 400", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)

		w := s.do(alice, http.MethodPost, "/api/leads/lead-2/swap", "not an object")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decodeProblem(t, w).Extra["code"])
	})
}

// TestLeadHandler_Create - new companies, optionally claimed by their finder
func TestLeadHandler_Create(t *testing.T) {
	t.Run("creates an unowned lead", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadCreated)).Return(nil).Once()

		w := s.do(alice, http.MethodPost, "/api/leads", usecase.CreateLeadInput{
			Name:        "Acme Produce",
			Commodities: []string{"produce"},
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var lead entity.Lead
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
		assert.Equal(t, "Acme Produce", lead.Name)
		assert.Equal(t, "org-1", lead.OrganizationID)
		assert.Nil(t, lead.OwnerRepID)
		s.events.AssertExpectations(t)
	})

	t.Run("claim on create publishes both events", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadCreated)).Return(nil).Once()
		s.events.On("PublishLeadEvent", mock.Anything, eventOfType(queue.LeadClaimed)).Return(nil).Once()

		w := s.do(alice, http.MethodPost, "/api/leads", usecase.CreateLeadInput{Name: "Acme Produce", Claim: true})

		require.Equal(t, http.StatusCreated, w.Code)
		var lead entity.Lead
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
		require.NotNil(t, lead.OwnerRepID)
		assert.Equal(t, "alice", *lead.OwnerRepID)
		s.events.AssertExpectations(t)
	})

	t.Run("missing name is 400", func(t *testing.T) {
		s := newTestServer(t)
		alice := s.rep("alice", "org-1", entity.RoleRep, nil)

		w := s.do(alice, http.MethodPost, "/api/leads", usecase.CreateLeadInput{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, usecase.CodeValidation, decodeProblem(t, w).Extra["code"])
	})
}
