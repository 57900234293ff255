package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLeadNotAvailable is returned by a claim whose precondition did not match:
	// the lead is owned, belongs to another organization, or does not exist.
	ErrLeadNotAvailable = errors.New("lead not available")
	// ErrLeadNotOwned is returned by a release from someone who is not the owner.
	ErrLeadNotOwned = errors.New("lead not owned by rep")
	// ErrStatusChanged is returned when a conditional status move found a different state.
	ErrStatusChanged = errors.New("lead status changed concurrently")
)

// Lead is a company a rep can own and work.
type Lead struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Website        string `json:"website,omitempty"`
	Industry       string `json:"industry,omitempty"`

	Commodities    []string `json:"commodities"`
	EquipmentTypes []string `json:"equipment_types"`
	Geographies    []string `json:"geographies"`
	Tags           []string `json:"tags"`

	OwnerRepID *string    `json:"owner_rep_id"`
	OwnedSince *time.Time `json:"owned_since"`
	ReleasedAt *time.Time `json:"released_at"`
	Status     Status     `json:"status"`

	// Written by activity logging, never by the allocation core.
	TotalTouches          int        `json:"total_touches"`
	LastActivityDate      *time.Time `json:"last_activity_date"`
	DaysSinceLastActivity *int       `json:"days_since_last_activity"`
	NextFollowUp          *time.Time `json:"next_follow_up"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLead builds an unowned prospect for an organization.
func NewLead(organizationID, name string, now time.Time) (*Lead, error) {
	l := &Lead{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           strings.TrimSpace(name),
		Status:         StatusNewResearching,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lead) Validate() error {
	if l.OrganizationID == "" {
		return errors.New("organization_id is required")
	}
	if l.Name == "" {
		return errors.New("name is required")
	}
	if !l.Status.Valid() {
		return errors.New("status is invalid")
	}
	return nil
}

func (l *Lead) IsOwned() bool {
	return l.OwnerRepID != nil
}

func (l *Lead) OwnedBy(repID string) bool {
	return l.OwnerRepID != nil && *l.OwnerRepID == repID
}

// InCooldown reports whether a released lead is still hidden from the pool.
func (l *Lead) InCooldown(cooldown time.Duration, now time.Time) bool {
	if l.ReleasedAt == nil || cooldown <= 0 {
		return false
	}
	return l.ReleasedAt.After(now.Add(-cooldown))
}

// ActivityReference is the timestamp staleness is measured from.
func (l *Lead) ActivityReference() time.Time {
	if l.LastActivityDate != nil {
		return *l.LastActivityDate
	}
	return l.CreatedAt
}

// DaysSince returns whole days elapsed between t and now.
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t) / (24 * time.Hour))
}

// PoolFilter narrows pool and owned-lead listings.
type PoolFilter struct {
	Search    string
	Status    Status
	Commodity string
	Equipment string
	Geography string
	Tag       string

	// IncludeRecentlyReleased shows leads still inside the cooldown window.
	IncludeRecentlyReleased bool
	Cooldown                time.Duration
	Now                     time.Time

	Offset int
	Limit  int
}

// StaleQuery selects owned leads whose last activity is older than Before
// (and, when set, not older than NotBefore).
type StaleQuery struct {
	Statuses  []Status
	Before    time.Time
	NotBefore *time.Time
}

// Ownership is the owner-side state of a lead, captured before a release so a
// compensating write can put it back.
type Ownership struct {
	RepID      string
	Status     Status
	OwnedSince *time.Time
}

// LeadRepository hands out organization-scoped lead handles.
type LeadRepository interface {
	ForOrganization(organizationID string) TenantLeads
}

// TenantLeads is every lead operation, bound to one organization.
type TenantLeads interface {
	OrganizationID() string

	Create(ctx context.Context, lead *Lead) error
	Get(ctx context.Context, leadID string) (*Lead, error)

	TryClaim(ctx context.Context, leadID, repID string, now time.Time) (*Lead, error)
	Release(ctx context.Context, leadID, repID string, now time.Time) (*Lead, error)
	// Restore undoes a release: it succeeds only while the lead is unowned and
	// still carries the releasedAt stamp that release wrote.
	Restore(ctx context.Context, leadID string, prior Ownership, releasedAt, now time.Time) (*Lead, error)

	CountOwnedActive(ctx context.Context, repID string) (int, error)
	ListPool(ctx context.Context, f PoolFilter) ([]*Lead, int, error)
	ListOwned(ctx context.Context, repID string, f PoolFilter) ([]*Lead, int, error)

	FindStale(ctx context.Context, q StaleQuery) ([]*Lead, error)
	MoveStatus(ctx context.Context, leadID, ownerRepID string, from, to Status, now time.Time) (*Lead, error)
	RefreshActivityAge(ctx context.Context, now time.Time) (int, error)
}
