package core

import (
	"context"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// TrialLength is the duration of a trial.
const TrialLength = schema.TrialDaysLength * 24 * time.Hour

// PlanService derives and transitions the trial state of an organization.
type PlanService struct {
	org   *schema.Owner
	store contract.OwnerStore
	now   func() time.Time
}

// NewPlanService creates a plan service for org. org is not the requesting user.
func NewPlanService(org *schema.Owner, store contract.OwnerStore) *PlanService {
	return &PlanService{org: org, store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source.
func (p *PlanService) WithClock(now func() time.Time) *PlanService {
	p.now = now
	return p
}

// PlanName returns the plan of the organization.
func (p *PlanService) PlanName() string { return p.org.Plan }

// TrialStartDate returns the trial start, or nil.
func (p *PlanService) TrialStartDate() *time.Time { return p.org.TrialStartDate }

// TrialEndDate returns the trial end, or nil.
func (p *PlanService) TrialEndDate() *time.Time { return p.org.TrialEndDate }

// TrialStatus derives the trial state: NOT_STARTED without an end date,
// EXPIRED once now is strictly after the end date, ONGOING otherwise.
func (p *PlanService) TrialStatus() schema.TrialStatus {
	end := p.org.TrialEndDate
	if end == nil {
		return schema.TrialNotStarted
	}
	if p.now().After(*end) {
		return schema.TrialExpired
	}
	return schema.TrialOngoing
}

// StartTrial starts a trial of TrialLength from now.
// It fails with a validation error unless the trial is NOT_STARTED.
func (p *PlanService) StartTrial(ctx context.Context) error {
	if p.TrialStatus() != schema.TrialNotStarted {
		return &contract.ValidationError{Msg: "Cannot start an existing trial", Reason: contract.ErrTrialAlreadyStarted}
	}
	start := p.now()
	end := start.Add(TrialLength)
	p.org.TrialStartDate = &start
	p.org.TrialEndDate = &end
	return p.store.UpdateOwnerTrial(ctx, p.org)
}

// ExpireTrialPreemptively ends the trial now.
// It fails with a validation error when no trial end date exists.
func (p *PlanService) ExpireTrialPreemptively(ctx context.Context) error {
	if p.org.TrialEndDate == nil {
		return &contract.ValidationError{Msg: "Cannot expire an unstarted trial", Reason: contract.ErrTrialNotStarted}
	}
	now := p.now()
	p.org.TrialEndDate = &now
	return p.store.UpdateOwnerTrial(ctx, p.org)
}
