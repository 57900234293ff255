package usecase

import (
	"context"
	"time"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// Clock returns the current time. Use cases default to time.Now.
type Clock func() time.Time

// TaskNotifier tells a rep about a task the sweep raised for them.
type TaskNotifier interface {
	NotifyTask(ctx context.Context, rep *entity.Rep, lead *entity.Lead, task *entity.Task) error
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
