package core

import (
	"context"
	"testing"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateMeasurements_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	cmds := NewRepositoryCommands(f.store, NewMeasurementService(f.store, f.reports, nil), &recordingSubmitter{})

	err := cmds.ActivateFlagsMeasurements(context.Background(), "codecov", "worker")
	assert.ErrorIs(t, err, contract.ErrUnauthenticated)
}

func TestActivateMeasurements_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := WithCurrentUser(context.Background(), f.owner)
	cmds := NewRepositoryCommands(f.store, NewMeasurementService(f.store, f.reports, nil), &recordingSubmitter{})

	err := cmds.ActivateFlagsMeasurements(ctx, "nobody", "worker")
	var nf *contract.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "owner", nf.Kind)

	err = cmds.ActivateComponentMeasurements(ctx, "codecov", "missing")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "repository", nf.Kind)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestActivateMeasurements_NoCommits(t *testing.T) {
	f := newFixture(t)
	ctx := WithCurrentUser(context.Background(), f.owner)
	sub := &recordingSubmitter{}
	cmds := NewRepositoryCommands(f.store, NewMeasurementService(f.store, f.reports, nil), sub)

	require.NoError(t, cmds.ActivateFlagsMeasurements(ctx, "codecov", "worker"))
	assert.Empty(t, sub.tasks)

	datasets, err := f.store.ListDatasets(ctx, f.repo.ID)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, schema.FlagCoverageMeasurement, datasets[0].Name)
	assert.True(t, datasets[0].Backfilled)
}

func TestActivateMeasurements_DispatchesBackfill(t *testing.T) {
	f := newFixture(t)
	f.addCommit(t, "abc", fixtureTime)
	ctx := WithCurrentUser(context.Background(), f.owner)
	sub := &recordingSubmitter{}
	svc := NewMeasurementService(f.store, f.reports, fixtureComponents())
	cmds := NewRepositoryCommands(f.store, svc, sub)

	require.NoError(t, cmds.ActivateComponentMeasurements(ctx, "codecov", "worker"))
	require.Len(t, sub.tasks, 1)
	task, ok := sub.tasks[0].(*BackfillTask)
	require.True(t, ok)
	assert.True(t, fixtureTime.Equal(task.Start), "backfill starts at the oldest commit")
	assert.Equal(t, f.repo.ID, task.Repo.ID)
	assert.Equal(t, schema.ComponentCoverageMeasurement, task.Dataset.Name)
	assert.Contains(t, task.Name(), "component_coverage")

	require.NoError(t, task.Execute(ctx))

	datasets, err := f.store.ListDatasets(ctx, f.repo.ID)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.True(t, datasets[0].Backfilled)

	ms, err := f.store.ListMeasurements(ctx, schema.MeasurementFilter{Name: schema.ComponentCoverageMeasurement})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "library", ms[0].MeasurableID)

	summaries, err := f.store.ListSummaries(ctx, schema.MeasurementFilter{RepoID: f.repo.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, summaries)

	// A backfilled dataset is not backfilled again.
	require.NoError(t, cmds.ActivateComponentMeasurements(ctx, "codecov", "worker"))
	assert.Len(t, sub.tasks, 1)
}

func TestActivateMeasurements_InlineSubmitter(t *testing.T) {
	f := newFixture(t)
	f.addCommit(t, "abc", fixtureTime)
	ctx := WithCurrentUser(context.Background(), f.owner)
	cmds := NewRepositoryCommands(f.store, NewMeasurementService(f.store, f.reports, nil), InlineSubmitter{Ctx: ctx})

	require.NoError(t, cmds.ActivateFlagsMeasurements(ctx, "codecov", "worker"))

	ms, err := f.store.ListMeasurements(ctx, schema.MeasurementFilter{Name: schema.FlagCoverageMeasurement})
	require.NoError(t, err)
	assert.Len(t, ms, 2)
}

func TestResolveRepository_ServiceScoped(t *testing.T) {
	f := newFixture(t)
	_, _, err := ResolveRepository(context.Background(), f.store, schema.GitLab, "codecov", "worker")
	assert.ErrorIs(t, err, contract.ErrNotFound)

	owner, repo, err := ResolveRepository(context.Background(), f.store, schema.GitHub, "codecov", "worker")
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, owner.ID)
	assert.Equal(t, f.repo.ID, repo.ID)
}
