package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskOverdue   TaskStatus = "overdue"
)

// TriggerSource records which rule raised a task.
type TriggerSource string

const (
	TriggerManual      TriggerSource = "manual"
	TriggerInactive30  TriggerSource = "inactive_30"
	TriggerInactive60  TriggerSource = "inactive_60"
	TriggerNoContact7d TriggerSource = "no_contact_7d"
)

type Task struct {
	ID             string        `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string        `json:"organization_id" gorm:"type:uuid;not null;index:idx_tasks_org_rep"`
	RepID          string        `json:"rep_id" gorm:"type:uuid;not null;index:idx_tasks_org_rep"`
	CompanyID      *string       `json:"company_id" gorm:"type:uuid;index:idx_tasks_company_trigger"`
	Title          string        `json:"title" gorm:"not null"`
	Notes          string        `json:"notes"`
	DueDate        time.Time     `json:"due_date" gorm:"not null"`
	Priority       TaskPriority  `json:"priority" gorm:"size:8;not null;default:'medium'"`
	Status         TaskStatus    `json:"status" gorm:"size:16;not null;default:'pending'"`
	TriggerSource  TriggerSource `json:"trigger_source" gorm:"size:32;not null;default:'manual';index:idx_tasks_company_trigger"`
	CompletedAt    *time.Time    `json:"completed_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// NewSweepTask builds a pending task raised by the inactivity sweep for a lead's owner.
func NewSweepTask(lead *Lead, trigger TriggerSource, priority TaskPriority, title, notes string, now time.Time) *Task {
	companyID := lead.ID
	return &Task{
		ID:             uuid.New().String(),
		OrganizationID: lead.OrganizationID,
		RepID:          *lead.OwnerRepID,
		CompanyID:      &companyID,
		Title:          title,
		Notes:          notes,
		DueDate:        now,
		Priority:       priority,
		Status:         TaskPending,
		TriggerSource:  trigger,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	HasPending(ctx context.Context, organizationID, companyID string, trigger TriggerSource) (bool, error)
}
