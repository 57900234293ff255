package usecase_test

import (
	"time"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/memory"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock for cooldown scenarios.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store *memory.Store
	clock *fakeClock
}

func newFixture() *fixture {
	f := &fixture{store: memory.NewStore(), clock: &fakeClock{now: t0}}
	f.org("org-1", 150, 7)
	f.org("org-2", 150, 7)
	return f
}

func (f *fixture) org(id string, leadCap, cooldownDays int) {
	f.store.PutOrganization(&entity.Organization{
		ID:   id,
		Name: id,
		Settings: entity.OrganizationSettings{
			LeadCap:      leadCap,
			CooldownDays: cooldownDays,
		},
	})
}

func (f *fixture) rep(id, org string, role entity.Role, leadCap *int) entity.Session {
	f.store.PutRep(&entity.Rep{ID: id, OrganizationID: org, Name: id, Email: id + "@example.com", Role: role, LeadCap: leadCap})
	return entity.Session{RepID: id, OrganizationID: org, Role: role}
}

func (f *fixture) lead(id, org string) {
	f.store.PutLead(&entity.Lead{
		ID:             id,
		OrganizationID: org,
		Name:           "Company " + id,
		Status:         entity.StatusNewResearching,
		CreatedAt:      f.clock.now,
		UpdatedAt:      f.clock.now,
	})
}

func (f *fixture) claimUC() *usecase.ClaimLeadUseCase {
	return usecase.NewClaimLeadUseCase(f.store.Leads(), f.store.Reps(), f.store.Organizations(), nil, f.clock.Now)
}

func (f *fixture) releaseUC() *usecase.ReleaseLeadUseCase {
	return usecase.NewReleaseLeadUseCase(f.store.Leads(), f.clock.Now)
}

func (f *fixture) poolUC() *usecase.ListPoolUseCase {
	return usecase.NewListPoolUseCase(f.store.Leads(), f.store.Organizations(), f.clock.Now)
}

func intPtr(v int) *int { return &v }
