package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Execute(ctx context.Context, now time.Time) (*usecase.SweepReport, error) {
	args := m.Called(ctx, now)
	report, _ := args.Get(0).(*usecase.SweepReport)
	return report, args.Error(1)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishLeadEvent(ctx context.Context, ev queue.LeadEvent) error {
	return m.Called(ctx, ev).Error(0)
}

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestInactivityRunnerPublishesDemotions(t *testing.T) {
	logs.Discard()
	owner := "rep-1"
	demoted := &entity.Lead{ID: "lead-1", OrganizationID: "org-1", OwnerRepID: &owner, Status: entity.StatusInactiveCustomer, UpdatedAt: now}

	sweeper := new(MockSweeper)
	sweeper.On("Execute", mock.Anything, now).Return(&usecase.SweepReport{MovedToInactive: 1, Demoted: []*entity.Lead{demoted}}, nil)

	events := new(MockEvents)
	events.On("PublishLeadEvent", mock.Anything, mock.MatchedBy(func(ev queue.LeadEvent) bool {
		return ev.Type == queue.LeadInactive && ev.LeadID == "lead-1" && ev.RepID == "rep-1"
	})).Return(nil).Once()

	report, err := NewInactivityRunner(sweeper, events).Run(context.Background(), "test", now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MovedToInactive)
	events.AssertExpectations(t)
}

func TestInactivityRunnerFailures(t *testing.T) {
	logs.Discard()

	t.Run("publish failure does not fail the run", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("Execute", mock.Anything, now).Return(&usecase.SweepReport{Demoted: []*entity.Lead{{ID: "lead-1"}}}, nil)
		events := new(MockEvents)
		events.On("PublishLeadEvent", mock.Anything, mock.Anything).Return(errors.New("broker gone"))

		_, err := NewInactivityRunner(sweeper, events).Run(context.Background(), "test", now)
		assert.NoError(t, err)
	})

	t.Run("partial run returns report and error", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("Execute", mock.Anything, now).Return(&usecase.SweepReport{
			Failed: []usecase.OrgFailure{{OrganizationID: "org-2", Error: "boom"}},
		}, errors.New("organization org-2: boom"))

		report, err := NewInactivityRunner(sweeper, nil).Run(context.Background(), "test", now)
		assert.Error(t, err)
		require.NotNil(t, report)
		assert.Len(t, report.Failed, 1)
	})

	t.Run("total failure", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("Execute", mock.Anything, now).Return(nil, errors.New("db down"))

		report, err := NewInactivityRunner(sweeper, nil).Run(context.Background(), "test", now)
		assert.Error(t, err)
		assert.Nil(t, report)
	})
}

type countingRunner struct {
	mu   sync.Mutex
	runs []string
}

func (c *countingRunner) Run(_ context.Context, trigger string, _ time.Time) (*usecase.SweepReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, trigger)
	return &usecase.SweepReport{}, nil
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func TestInactivityWorkerRunsImmediatelyAndStops(t *testing.T) {
	logs.Discard()
	runner := &countingRunner{}
	w := NewInactivityWorker(runner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, "ticker", runner.runs[0])
}
