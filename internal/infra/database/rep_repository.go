package database

import (
	"context"
	"errors"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"gorm.io/gorm"
)

type RepRepository struct {
	DB *gorm.DB
}

func NewRepRepository(db *gorm.DB) *RepRepository {
	return &RepRepository{DB: db}
}

// FindByID only finds reps inside organizationID.
func (r *RepRepository) FindByID(ctx context.Context, organizationID, repID string) (*entity.Rep, error) {
	var rep entity.Rep
	err := r.DB.WithContext(ctx).
		Where("id = ? AND organization_id = ?", repID, organizationID).
		First(&rep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isInvalidID(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &rep, nil
}
