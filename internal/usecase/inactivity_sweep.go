package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

const day = 24 * time.Hour

// SweepReport summarizes one inactivity sweep across all organizations.
type SweepReport struct {
	RanAt           time.Time      `json:"ran_at"`
	Organizations   int            `json:"organizations"`
	MovedToInactive int            `json:"moved_to_inactive"`
	WarningTasks    int            `json:"warning_tasks"`
	NoContactTasks  int            `json:"no_contact_tasks"`
	Refreshed       int            `json:"refreshed"`
	NotifyFailures  int            `json:"notify_failures"`
	Demoted         []*entity.Lead `json:"-"`
	Failed          []OrgFailure   `json:"failed,omitempty"`
}

type OrgFailure struct {
	OrganizationID string `json:"organization_id"`
	Error          string `json:"error"`
}

// TasksCreated maps each trigger to the number of tasks raised for it.
func (r *SweepReport) TasksCreated() map[entity.TriggerSource]int {
	return map[entity.TriggerSource]int{
		entity.TriggerInactive60:  r.MovedToInactive,
		entity.TriggerInactive30:  r.WarningTasks,
		entity.TriggerNoContact7d: r.NoContactTasks,
	}
}

// InactivitySweepUseCase demotes stale customers and raises follow-up tasks.
// It never changes lead ownership.
type InactivitySweepUseCase struct {
	Orgs     entity.OrganizationRepository
	Leads    entity.LeadRepository
	Tasks    entity.TaskRepository
	Reps     entity.RepRepository
	Notifier TaskNotifier
}

func NewInactivitySweepUseCase(
	orgs entity.OrganizationRepository,
	leads entity.LeadRepository,
	tasks entity.TaskRepository,
	reps entity.RepRepository,
	notifier TaskNotifier,
) *InactivitySweepUseCase {
	return &InactivitySweepUseCase{
		Orgs:     orgs,
		Leads:    leads,
		Tasks:    tasks,
		Reps:     reps,
		Notifier: notifier,
	}
}

// Execute sweeps every organization. A failing organization is recorded in the
// report and does not stop the others; the returned error joins those failures.
func (uc *InactivitySweepUseCase) Execute(ctx context.Context, now time.Time) (*SweepReport, error) {
	orgs, err := uc.Orgs.List(ctx)
	if err != nil {
		return nil, storeFailure("failed to list organizations", err)
	}

	report := &SweepReport{RanAt: now}
	var errs []error

	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report.Organizations++
		if err := uc.sweepOrganization(ctx, org, now, report); err != nil {
			report.Failed = append(report.Failed, OrgFailure{OrganizationID: org.ID, Error: err.Error()})
			errs = append(errs, fmt.Errorf("organization %s: %w", org.ID, err))
		}
	}

	return report, errors.Join(errs...)
}

func (uc *InactivitySweepUseCase) sweepOrganization(ctx context.Context, org *entity.Organization, now time.Time, report *SweepReport) error {
	leads := uc.Leads.ForOrganization(org.ID)
	autoMoveCutoff := now.Add(-time.Duration(org.AutoMoveDays()) * day)
	warningCutoff := now.Add(-time.Duration(org.WarningDays()) * day)
	prospectCutoff := now.Add(-entity.StaleProspectDays * day)

	// 1. Active customers past the auto-move threshold become inactive
	stale, err := leads.FindStale(ctx, entity.StaleQuery{
		Statuses: []entity.Status{entity.StatusActiveCustomer},
		Before:   autoMoveCutoff,
	})
	if err != nil {
		return fmt.Errorf("find auto-move candidates: %w", err)
	}
	for _, lead := range stale {
		moved, err := leads.MoveStatus(ctx, lead.ID, *lead.OwnerRepID, entity.StatusActiveCustomer, entity.StatusInactiveCustomer, now)
		if errors.Is(err, entity.ErrStatusChanged) {
			continue
		}
		if err != nil {
			return fmt.Errorf("move lead %s to inactive: %w", lead.ID, err)
		}

		days := entity.DaysSince(lead.ActivityReference(), now)
		task := entity.NewSweepTask(moved, entity.TriggerInactive60, entity.PriorityHigh,
			fmt.Sprintf("Reactivation call - %s moved to inactive", moved.Name),
			fmt.Sprintf("No activity in %d+ days. This was an active customer - worth a call.", days),
			now)
		if err := uc.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("create reactivation task: %w", err)
		}
		report.MovedToInactive++
		report.Demoted = append(report.Demoted, moved)
		uc.notify(ctx, moved, task, report)
	}

	// 2. Active customers inside the warning window get a one-time check-in
	warn, err := leads.FindStale(ctx, entity.StaleQuery{
		Statuses:  []entity.Status{entity.StatusActiveCustomer},
		Before:    warningCutoff,
		NotBefore: &autoMoveCutoff,
	})
	if err != nil {
		return fmt.Errorf("find warning candidates: %w", err)
	}
	for _, lead := range warn {
		days := entity.DaysSince(lead.ActivityReference(), now)
		created, err := uc.raiseOnce(ctx, lead, entity.TriggerInactive30,
			fmt.Sprintf("Check in - %s hasn't shipped in %d days", lead.Name, days),
			fmt.Sprintf("Active customer with no activity in %d days. Auto-moves to inactive at %d.", days, org.AutoMoveDays()),
			now)
		if err != nil {
			return err
		}
		if created {
			report.WarningTasks++
		}
	}

	// 3. Prospects mid-pipeline with no touch for a week
	quiet, err := leads.FindStale(ctx, entity.StaleQuery{
		Statuses: entity.StaleProspectStages(),
		Before:   prospectCutoff,
	})
	if err != nil {
		return fmt.Errorf("find no-contact candidates: %w", err)
	}
	for _, lead := range quiet {
		created, err := uc.raiseOnce(ctx, lead, entity.TriggerNoContact7d,
			fmt.Sprintf("Follow up with %s - %d days since last touch", lead.Name, entity.StaleProspectDays),
			fmt.Sprintf("Prospect in %s with no contact for %d+ days.", lead.Status, entity.DaysSince(lead.ActivityReference(), now)),
			now)
		if err != nil {
			return err
		}
		if created {
			report.NoContactTasks++
		}
	}

	// 4. Recompute days since last activity
	n, err := leads.RefreshActivityAge(ctx, now)
	if err != nil {
		return fmt.Errorf("refresh activity age: %w", err)
	}
	report.Refreshed += n

	return nil
}

// raiseOnce creates a medium-priority task unless a pending one with the same
// trigger already exists for the lead.
func (uc *InactivitySweepUseCase) raiseOnce(ctx context.Context, lead *entity.Lead, trigger entity.TriggerSource, title, notes string, now time.Time) (bool, error) {
	exists, err := uc.Tasks.HasPending(ctx, lead.OrganizationID, lead.ID, trigger)
	if err != nil {
		return false, fmt.Errorf("check pending %s task: %w", trigger, err)
	}
	if exists {
		return false, nil
	}

	task := entity.NewSweepTask(lead, trigger, entity.PriorityMedium, title, notes, now)
	if err := uc.Tasks.Create(ctx, task); err != nil {
		return false, fmt.Errorf("create %s task: %w", trigger, err)
	}
	return true, nil
}

// notify is best effort; failures are counted, not returned.
func (uc *InactivitySweepUseCase) notify(ctx context.Context, lead *entity.Lead, task *entity.Task, report *SweepReport) {
	if uc.Notifier == nil || uc.Reps == nil {
		return
	}
	rep, err := uc.Reps.FindByID(ctx, lead.OrganizationID, task.RepID)
	if err == nil {
		err = uc.Notifier.NotifyTask(ctx, rep, lead, task)
	}
	if err != nil {
		report.NotifyFailures++
	}
}
