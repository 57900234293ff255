package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/infra/memory"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// MockEventPublisher records lead events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishLeadEvent(ctx context.Context, ev queue.LeadEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockSweepRunner stands in for the inactivity runner
type MockSweepRunner struct {
	mock.Mock
}

func (m *MockSweepRunner) Run(ctx context.Context, trigger string, now time.Time) (*usecase.SweepReport, error) {
	args := m.Called(ctx, trigger, now)
	report, _ := args.Get(0).(*usecase.SweepReport)
	return report, args.Error(1)
}

type testServer struct {
	store   *memory.Store
	events  *MockEventPublisher
	sweep   *MockSweepRunner
	limiter *RateLimiter
	now     time.Time
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logs.Discard()

	s := &testServer{
		store:   memory.NewStore(),
		events:  new(MockEventPublisher),
		sweep:   new(MockSweepRunner),
		limiter: NewRateLimiter(0, time.Minute),
		now:     t0,
	}
	clock := func() time.Time { return s.now }

	for _, id := range []string{"org-1", "org-2"} {
		s.store.PutOrganization(&entity.Organization{
			ID:       id,
			Name:     id,
			Settings: entity.OrganizationSettings{LeadCap: 150, CooldownDays: 7},
		})
	}

	leads, reps, orgs := s.store.Leads(), s.store.Reps(), s.store.Organizations()
	claim := usecase.NewClaimLeadUseCase(leads, reps, orgs, nil, clock)
	release := usecase.NewReleaseLeadUseCase(leads, clock)

	sweep := NewSweepHandler(s.sweep, "s3cret")
	sweep.Now = clock

	s.handler = NewRouter(RouterConfig{
		Leads: NewLeadHandler(
			claim,
			release,
			usecase.NewSwapLeadUseCase(release, claim),
			usecase.NewCreateLeadUseCase(leads, reps, orgs, nil, clock),
			s.events,
			s.limiter,
		),
		Pool: NewPoolHandler(
			usecase.NewListPoolUseCase(leads, orgs, clock),
			usecase.NewListOwnedUseCase(leads, reps),
			usecase.NewCapacityStatusUseCase(leads, reps, orgs, nil),
		),
		Sweep:  sweep,
		Health: NewHealthHandler(s.store, nil),
	})
	return s
}

func (s *testServer) rep(id, org string, role entity.Role, leadCap *int) entity.Session {
	s.store.PutRep(&entity.Rep{ID: id, OrganizationID: org, Name: id, Email: id + "@example.com", Role: role, LeadCap: leadCap})
	return entity.Session{RepID: id, OrganizationID: org, Role: role}
}

func (s *testServer) lead(id, org string) {
	s.store.PutLead(&entity.Lead{
		ID:             id,
		OrganizationID: org,
		Name:           "Company " + id,
		Status:         entity.StatusNewResearching,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	})
}

func (s *testServer) do(sess entity.Session, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sess.RepID != "" {
		req.Header.Set(middleware.HeaderRepID, sess.RepID)
		req.Header.Set(middleware.HeaderOrganizationID, sess.OrganizationID)
		req.Header.Set(middleware.HeaderRole, string(sess.Role))
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// problemBody decodes the problem+json envelope used for every error response
type problemBody struct {
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail"`
	Extra  map[string]any `json:"extra"`
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problemBody {
	t.Helper()
	require.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p problemBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

// counter reads one sample from the /metrics exposition; absent samples read as zero.
func (s *testServer) counter(t *testing.T, sample string) float64 {
	t.Helper()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	for _, line := range strings.Split(w.Body.String(), "\n") {
		if value, ok := strings.CutPrefix(line, sample+" "); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			require.NoError(t, err)
			return v
		}
	}
	return 0
}

func intPtr(v int) *int { return &v }
