package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/troublesprouter/freight-crm/internal/entity"
)

// Fixture is the YAML layout accepted by --seed. Day offsets are relative to
// the time the fixture is loaded, so a checked-in file stays meaningful.
type Fixture struct {
	Organizations []FixtureOrganization `mapstructure:"organizations"`
}

type FixtureOrganization struct {
	ID                   string        `mapstructure:"id"`
	Name                 string        `mapstructure:"name"`
	LeadCap              int           `mapstructure:"lead_cap"`
	CooldownDays         *int          `mapstructure:"cooldown_days"`
	InactiveWarningDays  int           `mapstructure:"inactive_warning_days"`
	InactiveAutoMoveDays int           `mapstructure:"inactive_auto_move_days"`
	Reps                 []FixtureRep  `mapstructure:"reps"`
	Leads                []FixtureLead `mapstructure:"leads"`
}

type FixtureRep struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Email   string `mapstructure:"email"`
	Role    string `mapstructure:"role"`
	LeadCap *int   `mapstructure:"lead_cap"`
}

type FixtureLead struct {
	ID             string   `mapstructure:"id"`
	Name           string   `mapstructure:"name"`
	Website        string   `mapstructure:"website"`
	Industry       string   `mapstructure:"industry"`
	Status         string   `mapstructure:"status"`
	Commodities    []string `mapstructure:"commodities"`
	EquipmentTypes []string `mapstructure:"equipment_types"`
	Geographies    []string `mapstructure:"geographies"`
	Tags           []string `mapstructure:"tags"`

	OwnerRepID          string `mapstructure:"owner_rep_id"`
	OwnedDaysAgo        int    `mapstructure:"owned_days_ago"`
	ReleasedDaysAgo     *int   `mapstructure:"released_days_ago"`
	LastActivityDaysAgo *int   `mapstructure:"last_activity_days_ago"`
}

// LoadFixture reads a seed file. The format follows the file extension.
func LoadFixture(path string) (*Fixture, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("seed read error: %w", err)
	}

	var f Fixture
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("seed unmarshal error: %w", err)
	}
	return &f, nil
}

// Load writes every organization, rep and lead of f into the store. Nothing is
// written when any record is invalid.
func (s *Store) Load(f *Fixture, now time.Time) error {
	var (
		orgs  []*entity.Organization
		reps  []*entity.Rep
		leads []*entity.Lead
	)

	for i, fo := range f.Organizations {
		if fo.ID == "" {
			return fmt.Errorf("seed: organizations[%d] has no id", i)
		}
		org := &entity.Organization{
			ID:   fo.ID,
			Name: fo.Name,
			Settings: entity.OrganizationSettings{
				LeadCap:              fo.LeadCap,
				CooldownDays:         entity.DefaultCooldownDays,
				InactiveWarningDays:  fo.InactiveWarningDays,
				InactiveAutoMoveDays: fo.InactiveAutoMoveDays,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if fo.CooldownDays != nil {
			org.Settings.CooldownDays = *fo.CooldownDays
		}
		orgs = append(orgs, org)

		members := make(map[string]bool, len(fo.Reps))
		for j, fr := range fo.Reps {
			if fr.ID == "" {
				return fmt.Errorf("seed: %s reps[%d] has no id", fo.ID, j)
			}
			role := entity.Role(fr.Role)
			switch role {
			case "":
				role = entity.RoleRep
			case entity.RoleRep, entity.RoleManager, entity.RoleAdmin:
			default:
				return fmt.Errorf("seed: %s reps[%d] has unknown role %q", fo.ID, j, fr.Role)
			}
			reps = append(reps, &entity.Rep{
				ID:             fr.ID,
				OrganizationID: fo.ID,
				Name:           fr.Name,
				Email:          fr.Email,
				Role:           role,
				LeadCap:        fr.LeadCap,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			members[fr.ID] = true
		}

		for j, fl := range fo.Leads {
			l, err := fixtureLead(fo.ID, fl, now)
			if err != nil {
				return fmt.Errorf("seed: %s leads[%d]: %w", fo.ID, j, err)
			}
			if fl.OwnerRepID != "" && !members[fl.OwnerRepID] {
				return fmt.Errorf("seed: %s leads[%d]: owner %q is not a rep of the organization", fo.ID, j, fl.OwnerRepID)
			}
			leads = append(leads, l)
		}
	}

	for _, o := range orgs {
		s.PutOrganization(o)
	}
	for _, r := range reps {
		s.PutRep(r)
	}
	for _, l := range leads {
		s.PutLead(l)
	}
	return nil
}

func fixtureLead(orgID string, fl FixtureLead, now time.Time) (*entity.Lead, error) {
	l := &entity.Lead{
		ID:             fl.ID,
		OrganizationID: orgID,
		Name:           fl.Name,
		Website:        fl.Website,
		Industry:       fl.Industry,
		Status:         entity.Status(fl.Status),
		Commodities:    fl.Commodities,
		EquipmentTypes: fl.EquipmentTypes,
		Geographies:    fl.Geographies,
		Tags:           fl.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = entity.StatusNewResearching
	}

	if fl.OwnerRepID != "" {
		owner := fl.OwnerRepID
		since := daysAgo(now, fl.OwnedDaysAgo)
		l.OwnerRepID = &owner
		l.OwnedSince = &since
	} else if fl.ReleasedDaysAgo != nil {
		released := daysAgo(now, *fl.ReleasedDaysAgo)
		l.ReleasedAt = &released
	}
	if fl.LastActivityDaysAgo != nil {
		last := daysAgo(now, *fl.LastActivityDaysAgo)
		days := *fl.LastActivityDaysAgo
		l.LastActivityDate = &last
		l.DaysSinceLastActivity = &days
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func daysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
