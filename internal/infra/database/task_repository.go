package database

import (
	"context"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"gorm.io/gorm"
)

type TaskRepository struct {
	DB *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

// HasPending reports whether a pending task from trigger already exists for the company.
func (r *TaskRepository) HasPending(ctx context.Context, organizationID, companyID string, trigger entity.TriggerSource) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&entity.Task{}).
		Where("organization_id = ? AND company_id = ? AND trigger_source = ? AND status = ?",
			organizationID, companyID, trigger, entity.TaskPending).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
