package usecase

import (
	"context"
	"errors"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// CapacityPolicy decides how many active leads a rep may hold.
type CapacityPolicy interface {
	EffectiveCap(rep *entity.Rep, org *entity.Organization) int
}

// DefaultCapacityPolicy lets a rep-level cap override the organization cap.
// An explicit rep cap of zero means the rep may not claim.
type DefaultCapacityPolicy struct{}

func (DefaultCapacityPolicy) EffectiveCap(rep *entity.Rep, org *entity.Organization) int {
	if rep.LeadCap != nil {
		return *rep.LeadCap
	}
	if org.Settings.LeadCap > 0 {
		return org.Settings.LeadCap
	}
	return entity.DefaultLeadCap
}

// Utilization is a rep's active-lead count against their cap.
type Utilization struct {
	Count     int `json:"count"`
	Cap       int `json:"cap"`
	Remaining int `json:"remaining"`
}

func (u Utilization) AtCapacity() bool {
	return u.Count >= u.Cap
}

func newUtilization(count, limit int) Utilization {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Utilization{Count: count, Cap: limit, Remaining: remaining}
}

// capacityGate resolves the caller and measures their utilization. The count
// is read-then-decide; concurrent claims can overshoot the cap by at most the
// number of claims racing past the check.
type capacityGate struct {
	reps   entity.RepRepository
	orgs   entity.OrganizationRepository
	policy CapacityPolicy
}

func (g capacityGate) principal(ctx context.Context, sess entity.Session) (*entity.Rep, *entity.Organization, error) {
	if !sess.Valid() {
		return nil, nil, ErrNotFound
	}

	rep, err := g.reps.FindByID(ctx, sess.OrganizationID, sess.RepID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, nil, &DomainError{Code: CodeNotFound, Message: "user or org not found"}
		}
		return nil, nil, storeFailure("failed to load rep", err)
	}

	org, err := g.orgs.FindByID(ctx, sess.OrganizationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, nil, &DomainError{Code: CodeNotFound, Message: "user or org not found"}
		}
		return nil, nil, storeFailure("failed to load organization", err)
	}

	return rep, org, nil
}

func (g capacityGate) measure(ctx context.Context, sess entity.Session, leads entity.TenantLeads) (Utilization, error) {
	rep, org, err := g.principal(ctx, sess)
	if err != nil {
		return Utilization{}, err
	}

	limit := g.policy.EffectiveCap(rep, org)

	count, err := leads.CountOwnedActive(ctx, rep.ID)
	if err != nil {
		return Utilization{}, storeFailure("failed to count owned leads", err)
	}

	return newUtilization(count, limit), nil
}

// admit fails with CAPACITY_EXCEEDED when the rep has no room for another lead.
func (g capacityGate) admit(ctx context.Context, sess entity.Session, leads entity.TenantLeads) (Utilization, error) {
	u, err := g.measure(ctx, sess, leads)
	if err != nil {
		return u, err
	}
	if u.AtCapacity() {
		return u, CapacityExceeded(u.Count, u.Cap)
	}
	return u, nil
}

// CapacityStatusUseCase reports the caller's utilization.
type CapacityStatusUseCase struct {
	Leads entity.LeadRepository
	gate  capacityGate
}

func NewCapacityStatusUseCase(
	leads entity.LeadRepository,
	reps entity.RepRepository,
	orgs entity.OrganizationRepository,
	policy CapacityPolicy,
) *CapacityStatusUseCase {
	return &CapacityStatusUseCase{
		Leads: leads,
		gate:  capacityGate{reps: reps, orgs: orgs, policy: policyOrDefault(policy)},
	}
}

func (uc *CapacityStatusUseCase) Execute(ctx context.Context, sess entity.Session) (Utilization, error) {
	return uc.gate.measure(ctx, sess, uc.Leads.ForOrganization(sess.OrganizationID))
}

func policyOrDefault(p CapacityPolicy) CapacityPolicy {
	if p == nil {
		return DefaultCapacityPolicy{}
	}
	return p
}
