package database

import (
	"context"
	"errors"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"gorm.io/gorm"
)

type OrganizationRepository struct {
	DB *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{DB: db}
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*entity.Organization, error) {
	var org entity.Organization
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isInvalidID(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepository) List(ctx context.Context) ([]*entity.Organization, error) {
	var orgs []*entity.Organization
	if err := r.DB.WithContext(ctx).Order("id").Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}
