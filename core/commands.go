package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// RepositoryCommands are the repository-scoped mutations.
type RepositoryCommands struct {
	store        contract.Store
	measurements *MeasurementService
	submitter    TaskSubmitter
	now          func() time.Time
}

// NewRepositoryCommands creates the repository commands. Backfills are handed to submitter.
func NewRepositoryCommands(store contract.Store, measurements *MeasurementService, submitter TaskSubmitter) *RepositoryCommands {
	return &RepositoryCommands{
		store:        store,
		measurements: measurements,
		submitter:    submitter,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ActivateFlagsMeasurements enables the flag coverage timeseries of a repository.
func (c *RepositoryCommands) ActivateFlagsMeasurements(ctx context.Context, ownerName, repoName string) error {
	return c.activate(ctx, schema.FlagCoverageMeasurement, ownerName, repoName)
}

// ActivateComponentMeasurements enables the component coverage timeseries of a repository.
func (c *RepositoryCommands) ActivateComponentMeasurements(ctx context.Context, ownerName, repoName string) error {
	return c.activate(ctx, schema.ComponentCoverageMeasurement, ownerName, repoName)
}

func (c *RepositoryCommands) activate(ctx context.Context, name schema.MeasurementName, ownerName, repoName string) error {
	user := CurrentUser(ctx)
	if user == nil {
		return contract.ErrUnauthenticated
	}
	owner, repo, err := ResolveRepository(ctx, c.store, user.Service, ownerName, repoName)
	if err != nil {
		return err
	}
	// Private repositories of other organizations stay hidden.
	if err := AuthorizeOwner(ctx, c.store, owner); err != nil {
		if errors.Is(err, contract.ErrUnauthorized) && repo.Private {
			return &contract.NotFoundError{Kind: "repository", Name: ownerName + "/" + repoName}
		}
		return err
	}

	dataset, err := c.store.UpsertDataset(ctx, repo.ID, name)
	if err != nil {
		return fmt.Errorf("activate %s for %s: %w", name, repo.Slug(owner), err)
	}
	if dataset.Backfilled {
		return nil
	}

	start, err := c.store.OldestCommitTime(ctx, repo.ID)
	if errors.Is(err, contract.ErrNotFound) {
		return c.store.MarkDatasetBackfilled(ctx, dataset.ID)
	}
	if err != nil {
		return err
	}
	return c.submitter.Submit(&BackfillTask{
		Measurements: c.measurements,
		Datasets:     c.store,
		Repo:         repo,
		Dataset:      dataset,
		Start:        start,
		End:          c.now(),
	})
}

// ResolveRepository looks up an owner by username on service and one of its repositories.
func ResolveRepository(ctx context.Context, store contract.Store, service schema.Service, ownerName, repoName string) (*schema.Owner, *schema.Repository, error) {
	owner, err := store.GetOwnerByUsername(ctx, service, ownerName)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil, &contract.NotFoundError{Kind: "owner", Name: ownerName}
	}
	if err != nil {
		return nil, nil, err
	}
	repo, err := store.GetRepository(ctx, owner.ID, repoName)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil, &contract.NotFoundError{Kind: "repository", Name: ownerName + "/" + repoName}
	}
	if err != nil {
		return nil, nil, err
	}
	return owner, repo, nil
}

// BackfillTask writes the measurements of a repository over a time range,
// marks the dataset as backfilled and refreshes the summaries of the range.
type BackfillTask struct {
	Measurements *MeasurementService
	Datasets     contract.DatasetStore
	Repo         *schema.Repository
	Dataset      *schema.Dataset
	Start        time.Time
	End          time.Time
}

// Name identifies the task in logs.
func (t *BackfillTask) Name() string {
	return fmt.Sprintf("backfill %s repo=%d", t.Dataset.Name, t.Repo.ID)
}

// Execute runs the backfill.
func (t *BackfillTask) Execute(ctx context.Context) error {
	if _, err := t.Measurements.SaveRepoMeasurements(ctx, t.Repo, t.Start, t.End); err != nil {
		return err
	}
	if err := t.Datasets.MarkDatasetBackfilled(ctx, t.Dataset.ID); err != nil {
		return fmt.Errorf("mark dataset %d backfilled: %w", t.Dataset.ID, err)
	}
	return t.Measurements.RefreshMeasurementSummaries(ctx, t.Start, t.End)
}
