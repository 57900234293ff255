package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenGorm wraps an existing pool so gorm and the raw SQL lead store share connections.
func OpenGorm(db *sql.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

// companiesDDL is kept as SQL because the lead store relies on text[] columns
// and partial indexes gorm tags cannot express.
var companiesDDL = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id                       uuid PRIMARY KEY,
		organization_id          uuid NOT NULL REFERENCES organizations(id),
		name                     text NOT NULL,
		address                  text NOT NULL DEFAULT '',
		website                  text NOT NULL DEFAULT '',
		industry                 text NOT NULL DEFAULT '',
		commodities              text[] NOT NULL DEFAULT '{}',
		equipment_types          text[] NOT NULL DEFAULT '{}',
		geographies              text[] NOT NULL DEFAULT '{}',
		tags                     text[] NOT NULL DEFAULT '{}',
		owner_rep_id             uuid REFERENCES reps(id),
		owned_since              timestamptz,
		released_at              timestamptz,
		status                   varchar(32) NOT NULL DEFAULT 'new_researching',
		total_touches            integer NOT NULL DEFAULT 0,
		last_activity_date       timestamptz,
		days_since_last_activity integer,
		next_follow_up           timestamptz,
		created_at               timestamptz NOT NULL DEFAULT now(),
		updated_at               timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_companies_org_owner_status ON companies (organization_id, owner_rep_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_companies_pool ON companies (organization_id, released_at) WHERE owner_rep_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_companies_tags ON companies USING GIN (tags)`,
}

// Migrate creates or updates every table the service owns.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	db := gdb.WithContext(ctx)

	// 1. gorm-managed tables
	if err := db.AutoMigrate(&entity.Organization{}, &entity.Rep{}, &entity.Task{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// 2. companies
	for _, stmt := range companiesDDL {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("companies ddl: %w", err)
		}
	}
	return nil
}
