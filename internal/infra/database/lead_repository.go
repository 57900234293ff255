package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/troublesprouter/freight-crm/internal/entity"
)

const leadColumns = `id, organization_id, name, address, website, industry,
	commodities, equipment_types, geographies, tags,
	owner_rep_id, owned_since, released_at, status,
	total_touches, last_activity_date, days_since_last_activity, next_follow_up,
	created_at, updated_at`

// LeadRepository stores leads in the companies table. Ownership changes are
// single conditional UPDATE statements, which makes each one a compare-and-set.
type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) ForOrganization(organizationID string) entity.TenantLeads {
	return &TenantLeadRepository{DB: r.DB, orgID: organizationID}
}

// TenantLeadRepository binds every statement to one organization_id.
type TenantLeadRepository struct {
	DB    *sql.DB
	orgID string
}

func (r *TenantLeadRepository) OrganizationID() string { return r.orgID }

func (r *TenantLeadRepository) Create(ctx context.Context, l *entity.Lead) error {
	if l.OrganizationID != r.orgID {
		return fmt.Errorf("lead organization %q does not match %q", l.OrganizationID, r.orgID)
	}

	query := `
		INSERT INTO companies (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.DB.ExecContext(ctx, query,
		l.ID,
		l.OrganizationID,
		l.Name,
		l.Address,
		l.Website,
		l.Industry,
		pq.Array(nonNilStrings(l.Commodities)),
		pq.Array(nonNilStrings(l.EquipmentTypes)),
		pq.Array(nonNilStrings(l.Geographies)),
		pq.Array(nonNilStrings(l.Tags)),
		l.OwnerRepID,
		l.OwnedSince,
		l.ReleasedAt,
		string(l.Status),
		l.TotalTouches,
		l.LastActivityDate,
		l.DaysSinceLastActivity,
		l.NextFollowUp,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (r *TenantLeadRepository) Get(ctx context.Context, leadID string) (*entity.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM companies WHERE id = $1 AND organization_id = $2`

	l, err := scanLead(r.DB.QueryRowContext(ctx, query, leadID, r.orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *TenantLeadRepository) TryClaim(ctx context.Context, leadID, repID string, now time.Time) (*entity.Lead, error) {
	query := `
		UPDATE companies
		SET owner_rep_id = $3, owned_since = $4, released_at = NULL, status = $5, updated_at = $4
		WHERE id = $1 AND organization_id = $2 AND owner_rep_id IS NULL
		RETURNING ` + leadColumns

	l, err := scanLead(r.DB.QueryRowContext(ctx, query, leadID, r.orgID, repID, now, string(entity.StatusOnClaim)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, entity.ErrLeadNotAvailable
		}
		return nil, err
	}
	return l, nil
}

func (r *TenantLeadRepository) Release(ctx context.Context, leadID, repID string, now time.Time) (*entity.Lead, error) {
	query := `
		UPDATE companies
		SET owner_rep_id = NULL, owned_since = NULL, released_at = $4, status = $5, updated_at = $4
		WHERE id = $1 AND organization_id = $2 AND owner_rep_id = $3
		RETURNING ` + leadColumns

	l, err := scanLead(r.DB.QueryRowContext(ctx, query, leadID, r.orgID, repID, now, string(entity.StatusReleased)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, entity.ErrLeadNotOwned
		}
		return nil, err
	}
	return l, nil
}

func (r *TenantLeadRepository) Restore(ctx context.Context, leadID string, prior entity.Ownership, releasedAt, now time.Time) (*entity.Lead, error) {
	query := `
		UPDATE companies
		SET owner_rep_id = $3, status = $4, owned_since = $5, released_at = NULL, updated_at = $7
		WHERE id = $1 AND organization_id = $2 AND owner_rep_id IS NULL AND released_at = $6
		RETURNING ` + leadColumns

	var ownedSince any
	if prior.OwnedSince != nil {
		ownedSince = *prior.OwnedSince
	}

	l, err := scanLead(r.DB.QueryRowContext(ctx, query,
		leadID, r.orgID, prior.RepID, string(prior.Status), ownedSince, releasedAt, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, entity.ErrLeadNotAvailable
		}
		return nil, err
	}
	return l, nil
}

func (r *TenantLeadRepository) CountOwnedActive(ctx context.Context, repID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM companies
		WHERE organization_id = $1 AND owner_rep_id = $2 AND status = ANY($3)
	`

	var n int
	err := r.DB.QueryRowContext(ctx, query, r.orgID, repID, pq.Array(statusStrings(entity.ActiveStages()))).Scan(&n)
	if err != nil {
		if isInvalidID(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (r *TenantLeadRepository) ListPool(ctx context.Context, f entity.PoolFilter) ([]*entity.Lead, int, error) {
	w := newWhere(r.orgID)
	w.add("owner_rep_id IS NULL")
	w.add("status <> ALL(%s)", pq.Array(statusStrings(entity.TerminalStages())))
	if !f.IncludeRecentlyReleased && f.Cooldown > 0 {
		w.add("(released_at IS NULL OR released_at <= %s)", f.Now.Add(-f.Cooldown))
	}
	return r.list(ctx, w, f)
}

func (r *TenantLeadRepository) ListOwned(ctx context.Context, repID string, f entity.PoolFilter) ([]*entity.Lead, int, error) {
	w := newWhere(r.orgID)
	w.add("owner_rep_id = %s", repID)
	items, total, err := r.list(ctx, w, f)
	if isInvalidID(err) {
		return nil, 0, nil
	}
	return items, total, err
}

func (r *TenantLeadRepository) list(ctx context.Context, w *where, f entity.PoolFilter) ([]*entity.Lead, int, error) {
	if f.Search != "" {
		w.add("name ILIKE '%%' || %s || '%%' ESCAPE '\\'", escapeLike(f.Search))
	}
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.Commodity != "" {
		w.add("%s = ANY(commodities)", f.Commodity)
	}
	if f.Equipment != "" {
		w.add("%s = ANY(equipment_types)", f.Equipment)
	}
	if f.Geography != "" {
		w.add("%s = ANY(geographies)", f.Geography)
	}
	if f.Tag != "" {
		w.add("%s = ANY(tags)", f.Tag)
	}

	// 1. Total before paging
	var total int
	countQuery := `SELECT COUNT(*) FROM companies WHERE ` + w.sql()
	if err := r.DB.QueryRowContext(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 2. Page
	query := `SELECT ` + leadColumns + ` FROM companies WHERE ` + w.sql() +
		` ORDER BY next_follow_up ASC NULLS LAST, updated_at DESC, id ASC`
	args := w.args
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	items, err := r.queryLeads(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *TenantLeadRepository) FindStale(ctx context.Context, q entity.StaleQuery) ([]*entity.Lead, error) {
	w := newWhere(r.orgID)
	w.add("owner_rep_id IS NOT NULL")
	w.add("status = ANY(%s)", pq.Array(statusStrings(q.Statuses)))
	w.add("COALESCE(last_activity_date, created_at) < %s", q.Before)
	if q.NotBefore != nil {
		w.add("COALESCE(last_activity_date, created_at) >= %s", *q.NotBefore)
	}

	query := `SELECT ` + leadColumns + ` FROM companies WHERE ` + w.sql() + ` ORDER BY id`
	return r.queryLeads(ctx, query, w.args...)
}

func (r *TenantLeadRepository) MoveStatus(ctx context.Context, leadID, ownerRepID string, from, to entity.Status, now time.Time) (*entity.Lead, error) {
	query := `
		UPDATE companies
		SET status = $5, updated_at = $6
		WHERE id = $1 AND organization_id = $2 AND owner_rep_id = $3 AND status = $4
		RETURNING ` + leadColumns

	l, err := scanLead(r.DB.QueryRowContext(ctx, query, leadID, r.orgID, ownerRepID, string(from), string(to), now))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, getErr := r.Get(ctx, leadID); getErr != nil {
		return nil, getErr
	}
	return nil, entity.ErrStatusChanged
}

func (r *TenantLeadRepository) RefreshActivityAge(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE companies
		SET days_since_last_activity = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - last_activity_date)) / 86400))::int
		WHERE organization_id = $1 AND last_activity_date IS NOT NULL
	`

	res, err := r.DB.ExecContext(ctx, query, r.orgID, now)
	if err != nil {
		if isInvalidID(err) {
			return 0, nil
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *TenantLeadRepository) queryLeads(ctx context.Context, query string, args ...any) ([]*entity.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*entity.Lead, error) {
	var (
		l                                             entity.Lead
		commodities, equipment, geographies, tags     pq.StringArray
		owner                                         sql.NullString
		ownedSince, releasedAt, lastActivity, nextFup sql.NullTime
		daysSince                                     sql.NullInt64
		status                                        string
	)

	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.Name, &l.Address, &l.Website, &l.Industry,
		&commodities, &equipment, &geographies, &tags,
		&owner, &ownedSince, &releasedAt, &status,
		&l.TotalTouches, &lastActivity, &daysSince, &nextFup,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Commodities = []string(commodities)
	l.EquipmentTypes = []string(equipment)
	l.Geographies = []string(geographies)
	l.Tags = []string(tags)
	l.Status = entity.Status(status)
	if owner.Valid {
		l.OwnerRepID = &owner.String
	}
	l.OwnedSince = timePtr(ownedSince)
	l.ReleasedAt = timePtr(releasedAt)
	l.LastActivityDate = timePtr(lastActivity)
	l.NextFollowUp = timePtr(nextFup)
	if daysSince.Valid {
		d := int(daysSince.Int64)
		l.DaysSinceLastActivity = &d
	}
	return &l, nil
}

// where accumulates AND-ed predicates with positional arguments. It always
// starts with the tenant predicate.
type where struct {
	clauses []string
	args    []any
}

func newWhere(orgID string) *where {
	return &where{clauses: []string{"organization_id = $1"}, args: []any{orgID}}
}

// add formats clause with one placeholder; clauses without %s take no argument.
func (w *where) add(clause string, arg ...any) {
	if len(arg) == 0 {
		w.clauses = append(w.clauses, clause)
		return
	}
	w.args = append(w.args, arg[0])
	w.clauses = append(w.clauses, fmt.Sprintf(clause, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) sql() string {
	return strings.Join(w.clauses, " AND ")
}

// isInvalidID reports a malformed uuid (22P02), which can never match a row.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func statusStrings(statuses []entity.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
