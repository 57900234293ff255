package entity

import (
	"context"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleRep     Role = "rep"
)

// CanSeeRecentlyReleased gates the cooldown-bypassing pool view.
func (r Role) CanSeeRecentlyReleased() bool {
	return r == RoleAdmin || r == RoleManager
}

// Rep is a sales user. LeadCap nil means the organization default applies.
type Rep struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"size:200;not null"`
	Email          string    `json:"email" gorm:"size:320;not null;uniqueIndex"`
	Role           Role      `json:"role" gorm:"size:16;not null;default:'rep'"`
	LeadCap        *int      `json:"lead_cap"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Rep) TableName() string { return "reps" }

// RepRepository looks reps up inside one organization only.
type RepRepository interface {
	FindByID(ctx context.Context, organizationID, repID string) (*Rep, error)
}
