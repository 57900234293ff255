// Package memory is a process-local store used when no database driver is
// configured, and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// Store keeps organizations, reps, leads and tasks behind one lock. Every lead
// write is a compare-and-set under that lock.
type Store struct {
	mu    sync.RWMutex
	orgs  map[string]*entity.Organization
	reps  map[string]*entity.Rep
	leads map[string]*entity.Lead
	tasks []*entity.Task
}

func NewStore() *Store {
	return &Store{
		orgs:  make(map[string]*entity.Organization),
		reps:  make(map[string]*entity.Rep),
		leads: make(map[string]*entity.Lead),
	}
}

func (s *Store) Leads() entity.LeadRepository { return leadRepo{s} }

func (s *Store) Organizations() entity.OrganizationRepository { return orgRepo{s} }

func (s *Store) Reps() entity.RepRepository { return repRepo{s} }

func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s} }

func (s *Store) PutOrganization(o *entity.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orgs[o.ID] = &cp
}

func (s *Store) PutRep(r *entity.Rep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if r.LeadCap != nil {
		v := *r.LeadCap
		cp.LeadCap = &v
	}
	s.reps[r.ID] = &cp
}

// PutLead inserts or replaces a lead as-is, bypassing claim rules.
func (s *Store) PutLead(l *entity.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = cloneLead(l)
}

// Lead returns a copy of any lead regardless of tenant.
func (s *Store) Lead(id string) (*entity.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, false
	}
	return cloneLead(l), true
}

// PingContext always succeeds while ctx is live.
func (s *Store) PingContext(ctx context.Context) error {
	return ctx.Err()
}

type orgRepo struct{ s *Store }

func (r orgRepo) FindByID(ctx context.Context, id string) (*entity.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r orgRepo) List(ctx context.Context) ([]*entity.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Organization, 0, len(r.s.orgs))
	for _, o := range r.s.orgs {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type repRepo struct{ s *Store }

func (r repRepo) FindByID(ctx context.Context, organizationID, repID string) (*entity.Rep, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rep, ok := r.s.reps[repID]
	if !ok || rep.OrganizationID != organizationID {
		return nil, entity.ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

type TaskRepository struct{ s *Store }

func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.tasks = append(r.s.tasks, &cp)
	return nil
}

func (r *TaskRepository) HasPending(ctx context.Context, organizationID, companyID string, trigger entity.TriggerSource) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tasks {
		if t.OrganizationID == organizationID && t.CompanyID != nil && *t.CompanyID == companyID &&
			t.TriggerSource == trigger && t.Status == entity.TaskPending {
			return true, nil
		}
	}
	return false, nil
}

// All returns copies of every stored task in insertion order.
func (r *TaskRepository) All() []*entity.Task {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Task, 0, len(r.s.tasks))
	for _, t := range r.s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

type leadRepo struct{ s *Store }

func (r leadRepo) ForOrganization(organizationID string) entity.TenantLeads {
	return &tenantLeads{s: r.s, orgID: organizationID}
}

type tenantLeads struct {
	s     *Store
	orgID string
}

func (t *tenantLeads) OrganizationID() string { return t.orgID }

// get must be called with the lock held.
func (t *tenantLeads) get(id string) (*entity.Lead, bool) {
	l, ok := t.s.leads[id]
	if !ok || l.OrganizationID != t.orgID {
		return nil, false
	}
	return l, true
}

func (t *tenantLeads) Create(ctx context.Context, lead *entity.Lead) error {
	if lead.OrganizationID != t.orgID {
		return fmt.Errorf("lead organization %q does not match %q", lead.OrganizationID, t.orgID)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, exists := t.s.leads[lead.ID]; exists {
		return fmt.Errorf("lead %s already exists", lead.ID)
	}
	t.s.leads[lead.ID] = cloneLead(lead)
	return nil
}

func (t *tenantLeads) Get(ctx context.Context, leadID string) (*entity.Lead, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	l, ok := t.get(leadID)
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneLead(l), nil
}

func (t *tenantLeads) TryClaim(ctx context.Context, leadID, repID string, now time.Time) (*entity.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.get(leadID)
	if !ok || l.OwnerRepID != nil {
		return nil, entity.ErrLeadNotAvailable
	}
	owner, since := repID, now
	l.OwnerRepID = &owner
	l.OwnedSince = &since
	l.ReleasedAt = nil
	l.Status = entity.StatusOnClaim
	l.UpdatedAt = now
	return cloneLead(l), nil
}

func (t *tenantLeads) Release(ctx context.Context, leadID, repID string, now time.Time) (*entity.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.get(leadID)
	if !ok || !l.OwnedBy(repID) {
		return nil, entity.ErrLeadNotOwned
	}
	at := now
	l.OwnerRepID = nil
	l.OwnedSince = nil
	l.ReleasedAt = &at
	l.Status = entity.StatusReleased
	l.UpdatedAt = now
	return cloneLead(l), nil
}

func (t *tenantLeads) Restore(ctx context.Context, leadID string, prior entity.Ownership, releasedAt, now time.Time) (*entity.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.get(leadID)
	if !ok || l.OwnerRepID != nil || l.ReleasedAt == nil || !l.ReleasedAt.Equal(releasedAt) {
		return nil, entity.ErrLeadNotAvailable
	}
	owner := prior.RepID
	l.OwnerRepID = &owner
	l.OwnedSince = clonePtr(prior.OwnedSince)
	l.ReleasedAt = nil
	l.Status = prior.Status
	l.UpdatedAt = now
	return cloneLead(l), nil
}

func (t *tenantLeads) CountOwnedActive(ctx context.Context, repID string) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	n := 0
	for _, l := range t.s.leads {
		if l.OrganizationID == t.orgID && l.OwnedBy(repID) && l.Status.IsActiveStage() {
			n++
		}
	}
	return n, nil
}

func (t *tenantLeads) ListPool(ctx context.Context, f entity.PoolFilter) ([]*entity.Lead, int, error) {
	return t.list(f, func(l *entity.Lead) bool {
		if l.OwnerRepID != nil || l.Status.IsTerminalStage() {
			return false
		}
		return f.IncludeRecentlyReleased || !l.InCooldown(f.Cooldown, f.Now)
	})
}

func (t *tenantLeads) ListOwned(ctx context.Context, repID string, f entity.PoolFilter) ([]*entity.Lead, int, error) {
	return t.list(f, func(l *entity.Lead) bool { return l.OwnedBy(repID) })
}

func (t *tenantLeads) list(f entity.PoolFilter, keep func(*entity.Lead) bool) ([]*entity.Lead, int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var matched []*entity.Lead
	for _, l := range t.s.leads {
		if l.OrganizationID != t.orgID || !keep(l) || !matches(l, f) {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	total := len(matched)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < total {
		end = start + f.Limit
	}

	out := make([]*entity.Lead, 0, end-start)
	for _, l := range matched[start:end] {
		out = append(out, cloneLead(l))
	}
	return out, total, nil
}

func (t *tenantLeads) FindStale(ctx context.Context, q entity.StaleQuery) ([]*entity.Lead, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var out []*entity.Lead
	for _, l := range t.s.leads {
		if l.OrganizationID != t.orgID || l.OwnerRepID == nil || !hasStatus(q.Statuses, l.Status) {
			continue
		}
		ref := l.ActivityReference()
		if !ref.Before(q.Before) {
			continue
		}
		if q.NotBefore != nil && ref.Before(*q.NotBefore) {
			continue
		}
		out = append(out, cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tenantLeads) MoveStatus(ctx context.Context, leadID, ownerRepID string, from, to entity.Status, now time.Time) (*entity.Lead, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.get(leadID)
	if !ok {
		return nil, entity.ErrNotFound
	}
	if l.Status != from || !l.OwnedBy(ownerRepID) {
		return nil, entity.ErrStatusChanged
	}
	l.Status = to
	l.UpdatedAt = now
	return cloneLead(l), nil
}

func (t *tenantLeads) RefreshActivityAge(ctx context.Context, now time.Time) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, l := range t.s.leads {
		if l.OrganizationID != t.orgID || l.LastActivityDate == nil {
			continue
		}
		days := entity.DaysSince(*l.LastActivityDate, now)
		l.DaysSinceLastActivity = &days
		n++
	}
	return n, nil
}

func matches(l *entity.Lead, f entity.PoolFilter) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return contains(l.Commodities, f.Commodity) &&
		contains(l.EquipmentTypes, f.Equipment) &&
		contains(l.Geographies, f.Geography) &&
		contains(l.Tags, f.Tag)
}

// contains treats an empty want as "no filter".
func contains(values []string, want string) bool {
	if want == "" {
		return true
	}
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func hasStatus(statuses []entity.Status, s entity.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// less orders by next follow-up (nulls last), newest update, then id.
func less(a, b *entity.Lead) bool {
	switch {
	case a.NextFollowUp != nil && b.NextFollowUp == nil:
		return true
	case a.NextFollowUp == nil && b.NextFollowUp != nil:
		return false
	case a.NextFollowUp != nil && !a.NextFollowUp.Equal(*b.NextFollowUp):
		return a.NextFollowUp.Before(*b.NextFollowUp)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func cloneLead(l *entity.Lead) *entity.Lead {
	cp := *l
	cp.Commodities = cloneStrings(l.Commodities)
	cp.EquipmentTypes = cloneStrings(l.EquipmentTypes)
	cp.Geographies = cloneStrings(l.Geographies)
	cp.Tags = cloneStrings(l.Tags)
	cp.OwnerRepID = clonePtr(l.OwnerRepID)
	cp.OwnedSince = clonePtr(l.OwnedSince)
	cp.ReleasedAt = clonePtr(l.ReleasedAt)
	cp.LastActivityDate = clonePtr(l.LastActivityDate)
	cp.DaysSinceLastActivity = clonePtr(l.DaysSinceLastActivity)
	cp.NextFollowUp = clonePtr(l.NextFollowUp)
	return &cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
