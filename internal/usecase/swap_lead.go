package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// Swap transaction steps, as reported by OperationError.
const (
	SwapStepRelease = "release_lead"
	SwapStepClaim   = "claim_lead"
)

type SwapLeadOutput struct {
	Released *entity.Lead     `json:"released"`
	Claimed  *ClaimLeadOutput `json:"claimed"`
}

// SwapLeadUseCase is the "release one to claim another" flow offered when a
// rep hits their cap. If the claim fails, the released lead goes back to the
// rep with its previous stage and owned-since date.
type SwapLeadUseCase struct {
	Release *ReleaseLeadUseCase
	Claim   *ClaimLeadUseCase
}

func NewSwapLeadUseCase(release *ReleaseLeadUseCase, claim *ClaimLeadUseCase) *SwapLeadUseCase {
	return &SwapLeadUseCase{Release: release, Claim: claim}
}

func (uc *SwapLeadUseCase) Execute(ctx context.Context, sess entity.Session, releaseID, claimID string) (*SwapLeadOutput, error) {
	releaseID = strings.TrimSpace(releaseID)
	claimID = strings.TrimSpace(claimID)
	if releaseID == "" || claimID == "" {
		return nil, NewValidationError("validation failed: release_lead_id and lead id are required")
	}
	if releaseID == claimID {
		return nil, NewValidationError("validation failed: cannot swap a lead for itself")
	}

	out := &SwapLeadOutput{}
	leads := uc.Release.Leads.ForOrganization(sess.OrganizationID)
	var prior entity.Ownership
	txn := NewTransaction()

	txn.AddOperation(SwapStepRelease, func(ctx context.Context) error {
		// 1. Remember the owner-side state so a failed claim can restore it
		current, err := leads.Get(ctx, releaseID)
		switch {
		case errors.Is(err, entity.ErrNotFound):
			return ErrNotOwned
		case err != nil:
			return storeFailure("failed to load lead", err)
		case !current.OwnedBy(sess.RepID):
			return ErrNotOwned
		}
		prior = entity.Ownership{RepID: sess.RepID, Status: current.Status, OwnedSince: current.OwnedSince}

		// 2. Release
		lead, err := uc.Release.Execute(ctx, sess, releaseID)
		out.Released = lead
		return err
	})

	txn.AddCompensation("restore_released_lead", func(ctx context.Context) error {
		if out.Released == nil || out.Released.ReleasedAt == nil {
			return errors.New("released lead has no release stamp")
		}
		if _, err := leads.Restore(ctx, releaseID, prior, *out.Released.ReleasedAt, uc.Release.Now()); err != nil {
			return err
		}
		out.Released = nil
		return nil
	})

	txn.AddOperation(SwapStepClaim, func(ctx context.Context) error {
		claimed, err := uc.Claim.Execute(ctx, sess, claimID)
		out.Claimed = claimed
		return err
	})

	if err := txn.Execute(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
