package entity

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// System fallbacks when an organization leaves a setting at zero.
const (
	DefaultLeadCap              = 150
	DefaultCooldownDays         = 7
	DefaultInactiveWarningDays  = 30
	DefaultInactiveAutoMoveDays = 60
	StaleProspectDays           = 7
)

// OrganizationSettings are the allocation policy knobs for one tenant.
type OrganizationSettings struct {
	LeadCap              int `json:"lead_cap" gorm:"not null;default:150"`
	CooldownDays         int `json:"cooldown_days" gorm:"not null;default:7"`
	InactiveWarningDays  int `json:"inactive_warning_days" gorm:"not null;default:30"`
	InactiveAutoMoveDays int `json:"inactive_auto_move_days" gorm:"not null;default:60"`
}

type Organization struct {
	ID        string               `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string               `json:"name" gorm:"size:200;not null"`
	Settings  OrganizationSettings `json:"settings" gorm:"embedded;embeddedPrefix:setting_"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) Cooldown() time.Duration {
	if o.Settings.CooldownDays < 0 {
		return 0
	}
	return time.Duration(o.Settings.CooldownDays) * 24 * time.Hour
}

func (o *Organization) WarningDays() int {
	if o.Settings.InactiveWarningDays <= 0 {
		return DefaultInactiveWarningDays
	}
	return o.Settings.InactiveWarningDays
}

func (o *Organization) AutoMoveDays() int {
	if o.Settings.InactiveAutoMoveDays <= 0 {
		return DefaultInactiveAutoMoveDays
	}
	return o.Settings.InactiveAutoMoveDays
}

type OrganizationRepository interface {
	FindByID(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}
