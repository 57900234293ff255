package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	// MaxPage keeps (page-1)*pageSize far from integer overflow.
	MaxPage = 100000
)

// PoolQuery is the caller-facing filter set for pool listings.
type PoolQuery struct {
	Search           string
	Status           string
	Commodity        string
	Equipment        string
	Geography        string
	Tag              string
	RecentlyReleased bool
	Page             int
	PageSize         int
}

type LeadPage struct {
	Items    []*entity.Lead `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (q PoolQuery) filter() (entity.PoolFilter, int, int, error) {
	f := entity.PoolFilter{
		Search:    strings.TrimSpace(q.Search),
		Commodity: strings.TrimSpace(q.Commodity),
		Equipment: strings.TrimSpace(q.Equipment),
		Geography: strings.TrimSpace(q.Geography),
		Tag:       strings.TrimSpace(q.Tag),
	}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		s, err := entity.ParseStatus(raw)
		if err != nil {
			return f, 0, 0, NewValidationError(err.Error())
		}
		f.Status = s
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return f, 0, 0, NewValidationError(fmt.Sprintf("validation failed: page must not exceed %d", MaxPage))
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	f.Offset = (page - 1) * size
	f.Limit = size
	return f, page, size, nil
}

// ListPoolUseCase lists the organization's unowned leads outside their cooldown.
type ListPoolUseCase struct {
	Leads entity.LeadRepository
	Orgs  entity.OrganizationRepository
	Now   Clock
}

func NewListPoolUseCase(leads entity.LeadRepository, orgs entity.OrganizationRepository, now Clock) *ListPoolUseCase {
	return &ListPoolUseCase{Leads: leads, Orgs: orgs, Now: clockOrDefault(now)}
}

func (uc *ListPoolUseCase) Execute(ctx context.Context, sess entity.Session, q PoolQuery) (*LeadPage, error) {
	if !sess.Valid() {
		return nil, ErrNotFound
	}

	f, page, size, err := q.filter()
	if err != nil {
		return nil, err
	}

	org, err := uc.Orgs.FindByID(ctx, sess.OrganizationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &DomainError{Code: CodeNotFound, Message: "organization not found"}
		}
		return nil, storeFailure("failed to load organization", err)
	}

	f.Now = uc.Now()
	f.Cooldown = org.Cooldown()
	// Only admins and managers may look inside the cooldown window
	f.IncludeRecentlyReleased = q.RecentlyReleased && sess.Role.CanSeeRecentlyReleased()

	items, total, err := uc.Leads.ForOrganization(sess.OrganizationID).ListPool(ctx, f)
	if err != nil {
		return nil, storeFailure("failed to list pool", err)
	}
	return &LeadPage{Items: nonNil(items), Total: total, Page: page, PageSize: size}, nil
}

// ListOwnedUseCase lists the leads a rep currently owns ("my pool").
type ListOwnedUseCase struct {
	Leads entity.LeadRepository
	Reps  entity.RepRepository
}

func NewListOwnedUseCase(leads entity.LeadRepository, reps entity.RepRepository) *ListOwnedUseCase {
	return &ListOwnedUseCase{Leads: leads, Reps: reps}
}

// Execute lists repID's leads; an empty repID means the caller.
func (uc *ListOwnedUseCase) Execute(ctx context.Context, sess entity.Session, repID string, q PoolQuery) (*LeadPage, error) {
	if !sess.Valid() {
		return nil, ErrNotFound
	}
	repID = strings.TrimSpace(repID)
	if repID == "" {
		repID = sess.RepID
	}

	if _, err := uc.Reps.FindByID(ctx, sess.OrganizationID, repID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &DomainError{Code: CodeNotFound, Message: "rep not found"}
		}
		return nil, storeFailure("failed to load rep", err)
	}

	f, page, size, err := q.filter()
	if err != nil {
		return nil, err
	}

	items, total, err := uc.Leads.ForOrganization(sess.OrganizationID).ListOwned(ctx, repID, f)
	if err != nil {
		return nil, storeFailure("failed to list owned leads", err)
	}
	return &LeadPage{Items: nonNil(items), Total: total, Page: page, PageSize: size}, nil
}

func nonNil(items []*entity.Lead) []*entity.Lead {
	if items == nil {
		return []*entity.Lead{}
	}
	return items
}
