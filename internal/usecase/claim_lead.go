package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

type ClaimLeadOutput struct {
	Lead         *entity.Lead `json:"company"`
	CurrentCount int          `json:"current_count"`
	LeadCap      int          `json:"lead_cap"`
}

// ClaimLeadUseCase moves an unowned lead into the caller's pool.
type ClaimLeadUseCase struct {
	Leads entity.LeadRepository
	Now   Clock
	gate  capacityGate
}

func NewClaimLeadUseCase(
	leads entity.LeadRepository,
	reps entity.RepRepository,
	orgs entity.OrganizationRepository,
	policy CapacityPolicy,
	now Clock,
) *ClaimLeadUseCase {
	return &ClaimLeadUseCase{
		Leads: leads,
		Now:   clockOrDefault(now),
		gate:  capacityGate{reps: reps, orgs: orgs, policy: policyOrDefault(policy)},
	}
}

func (uc *ClaimLeadUseCase) Execute(ctx context.Context, sess entity.Session, leadID string) (*ClaimLeadOutput, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, ErrNotFound
	}

	leads := uc.Leads.ForOrganization(sess.OrganizationID)

	// 1. Resolve rep + org and check the cap before touching the lead
	u, err := uc.gate.admit(ctx, sess, leads)
	if err != nil {
		return nil, err
	}

	// 2. Single conditional write: only succeeds while the lead is unowned
	lead, err := leads.TryClaim(ctx, leadID, sess.RepID, uc.Now())
	if err == nil {
		return &ClaimLeadOutput{Lead: lead, CurrentCount: u.Count + 1, LeadCap: u.Cap}, nil
	}

	switch {
	case errors.Is(err, entity.ErrLeadNotAvailable):
		return nil, uc.explainUnavailable(ctx, leads, leadID)
	case errors.Is(err, entity.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, storeFailure("failed to claim lead", err)
	}
}

// explainUnavailable tells a lost race apart from a lead this tenant cannot see.
// The lookup is tenant-scoped, so other organizations' leads read as missing.
func (uc *ClaimLeadUseCase) explainUnavailable(ctx context.Context, leads entity.TenantLeads, leadID string) error {
	_, err := leads.Get(ctx, leadID)
	switch {
	case err == nil:
		return ErrAlreadyClaimed
	case errors.Is(err, entity.ErrNotFound):
		return ErrNotFound
	default:
		return storeFailure("failed to load lead", err)
	}
}
