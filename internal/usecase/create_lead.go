package usecase

import (
	"context"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

type CreateLeadInput struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Website        string   `json:"website"`
	Industry       string   `json:"industry"`
	Commodities    []string `json:"commodities"`
	EquipmentTypes []string `json:"equipment_types"`
	Geographies    []string `json:"geographies"`
	Tags           []string `json:"tags"`

	// Claim adds the lead straight into the caller's pool, subject to their cap.
	Claim bool `json:"claim"`
}

// CreateLeadUseCase adds a company to the organization: unowned for prospecting,
// or owned by the caller when they found it themselves.
type CreateLeadUseCase struct {
	Leads entity.LeadRepository
	Now   Clock
	gate  capacityGate
}

func NewCreateLeadUseCase(
	leads entity.LeadRepository,
	reps entity.RepRepository,
	orgs entity.OrganizationRepository,
	policy CapacityPolicy,
	now Clock,
) *CreateLeadUseCase {
	return &CreateLeadUseCase{
		Leads: leads,
		Now:   clockOrDefault(now),
		gate:  capacityGate{reps: reps, orgs: orgs, policy: policyOrDefault(policy)},
	}
}

func (uc *CreateLeadUseCase) Execute(ctx context.Context, sess entity.Session, input CreateLeadInput) (*entity.Lead, error) {
	if !sess.Valid() {
		return nil, ErrNotFound
	}

	if errs := ValidateCreateLeadInput(input); len(errs) > 0 {
		return nil, NewValidationError(joinValidationErrors(errs))
	}

	leads := uc.Leads.ForOrganization(sess.OrganizationID)

	if input.Claim {
		if _, err := uc.gate.admit(ctx, sess, leads); err != nil {
			return nil, err
		}
	}

	now := uc.Now()
	lead, err := entity.NewLead(sess.OrganizationID, input.Name, now)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}
	lead.Address = strings.TrimSpace(input.Address)
	lead.Website = strings.TrimSpace(input.Website)
	lead.Industry = strings.TrimSpace(input.Industry)
	lead.Commodities = normalizeList(input.Commodities)
	lead.EquipmentTypes = normalizeList(input.EquipmentTypes)
	lead.Geographies = normalizeList(input.Geographies)
	lead.Tags = normalizeList(input.Tags)

	if input.Claim {
		owner := sess.RepID
		lead.OwnerRepID = &owner
		lead.OwnedSince = &now
		lead.Status = entity.StatusOnClaim
	}

	if err := leads.Create(ctx, lead); err != nil {
		return nil, storeFailure("failed to create lead", err)
	}
	return lead, nil
}
