package graphql

import (
	"context"
	"errors"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// Resolver is the root resolver of queries and mutations.
type Resolver struct {
	store    contract.Store
	commands *core.RepositoryCommands
	now      func() time.Time
}

// NewResolver creates the root resolver.
func NewResolver(store contract.Store, commands *core.RepositoryCommands) *Resolver {
	return &Resolver{store: store, commands: commands, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source of the trial mutations.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ActivateMeasurementsInput is the input shape of both activation mutations.
type ActivateMeasurementsInput struct {
	Owner    string
	RepoName string
}

// TrialInput is the input shape of both trial mutations.
type TrialInput struct {
	Owner string
}

// Payload carries the typed error of a failed mutation. It resolves every
// mutation payload type of the schema.
type Payload struct {
	err *MutationError
}

// Error resolves the error field.
func (p *Payload) Error() *MutationError { return p.err }

// payload turns a service error into the mutation result: nil on success,
// a payload for user-facing errors, a top level error otherwise.
func payload(err error) (*Payload, error) {
	if err == nil {
		return nil, nil
	}
	if u, ok := asErrorUnion(err); ok {
		return &Payload{err: u}, nil
	}
	return nil, err
}

// ActivateComponentMeasurements resolves the activateComponentMeasurements mutation.
func (r *Resolver) ActivateComponentMeasurements(ctx context.Context, args struct{ Input ActivateMeasurementsInput }) (*Payload, error) {
	return payload(r.commands.ActivateComponentMeasurements(ctx, args.Input.Owner, args.Input.RepoName))
}

// ActivateFlagsMeasurements resolves the activateFlagsMeasurements mutation.
func (r *Resolver) ActivateFlagsMeasurements(ctx context.Context, args struct{ Input ActivateMeasurementsInput }) (*Payload, error) {
	return payload(r.commands.ActivateFlagsMeasurements(ctx, args.Input.Owner, args.Input.RepoName))
}

// StartTrial resolves the startTrial mutation.
func (r *Resolver) StartTrial(ctx context.Context, args struct{ Input TrialInput }) (*Payload, error) {
	plan, err := r.planService(ctx, args.Input.Owner)
	if err != nil {
		return payload(err)
	}
	return payload(plan.StartTrial(ctx))
}

// ExpireTrial resolves the expireTrial mutation.
func (r *Resolver) ExpireTrial(ctx context.Context, args struct{ Input TrialInput }) (*Payload, error) {
	plan, err := r.planService(ctx, args.Input.Owner)
	if err != nil {
		return payload(err)
	}
	return payload(plan.ExpireTrialPreemptively(ctx))
}

// planService resolves the organization on the service of the current user,
// which must be allowed to act for it.
func (r *Resolver) planService(ctx context.Context, ownerName string) (*core.PlanService, error) {
	user := core.CurrentUser(ctx)
	if user == nil {
		return nil, contract.ErrUnauthenticated
	}
	org, err := r.store.GetOwnerByUsername(ctx, user.Service, ownerName)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, &contract.NotFoundError{Kind: "owner", Name: ownerName}
	}
	if err != nil {
		return nil, err
	}
	if err := core.AuthorizeOwner(ctx, r.store, org); err != nil {
		return nil, err
	}
	return core.NewPlanService(org, r.store).WithClock(r.now), nil
}

// Owner resolves the owner query. Anonymous requests match any service.
func (r *Resolver) Owner(ctx context.Context, args struct{ Username string }) (*OwnerResolver, error) {
	var service schema.Service
	if user := core.CurrentUser(ctx); user != nil {
		service = user.Service
	}
	org, err := r.store.GetOwnerByUsername(ctx, service, args.Username)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &OwnerResolver{org: org, plan: core.NewPlanService(org, r.store).WithClock(r.now)}, nil
}

// OwnerResolver resolves the Owner type.
type OwnerResolver struct {
	org  *schema.Owner
	plan *core.PlanService
}

func (o *OwnerResolver) Username() string { return o.org.Username }

func (o *OwnerResolver) Service() string { return string(o.org.Service) }

func (o *OwnerResolver) Plan() string { return o.plan.PlanName() }

func (o *OwnerResolver) TrialStatus() string { return string(o.plan.TrialStatus()) }

func (o *OwnerResolver) TrialStartDate() *string { return formatTime(o.plan.TrialStartDate()) }

func (o *OwnerResolver) TrialEndDate() *string { return formatTime(o.plan.TrialEndDate()) }
