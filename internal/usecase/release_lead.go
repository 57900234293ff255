package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// ReleaseLeadUseCase hands an owned lead back to the shared pool. Cooldown is
// applied when the pool is read, so a release by the owner always succeeds.
type ReleaseLeadUseCase struct {
	Leads entity.LeadRepository
	Now   Clock
}

func NewReleaseLeadUseCase(leads entity.LeadRepository, now Clock) *ReleaseLeadUseCase {
	return &ReleaseLeadUseCase{Leads: leads, Now: clockOrDefault(now)}
}

func (uc *ReleaseLeadUseCase) Execute(ctx context.Context, sess entity.Session, leadID string) (*entity.Lead, error) {
	leadID = strings.TrimSpace(leadID)
	if !sess.Valid() || leadID == "" {
		return nil, ErrNotOwned
	}

	lead, err := uc.Leads.ForOrganization(sess.OrganizationID).Release(ctx, leadID, sess.RepID, uc.Now())
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotOwned) || errors.Is(err, entity.ErrNotFound) {
			return nil, ErrNotOwned
		}
		return nil, storeFailure("failed to release lead", err)
	}
	return lead, nil
}
