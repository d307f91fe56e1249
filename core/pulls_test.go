package core

import (
	"context"
	"testing"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) addPull(t *testing.T, pullID int64, state schema.PullState, head, base, compared string) *schema.Pull {
	t.Helper()
	p := &schema.Pull{
		RepositoryID: f.repo.ID,
		PullID:       pullID,
		State:        state,
		Title:        "change",
		AuthorID:     &f.owner.ID,
		Head:         head,
		Base:         base,
		ComparedTo:   compared,
		UpdatedAt:    fixtureTime,
	}
	require.NoError(t, f.store.SavePull(context.Background(), p))
	return p
}

func TestPullCommands_FetchPullRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCommit(t, "head1", fixtureTime)
	base := &schema.Commit{
		RepositoryID: f.repo.ID,
		CommitID:     "base1",
		Timestamp:    fixtureTime,
		Branch:       "main",
		State:        schema.CommitComplete,
		Totals:       &schema.CommitTotals{Files: 2, Lines: 4, Hits: 2, Misses: 2, Coverage: "50.00000"},
	}
	require.NoError(t, f.store.SaveCommit(ctx, base))
	f.addPull(t, 7, schema.PullOpen, "head1", "base1", "")

	pulls := NewPullCommands(f.store)
	v, err := pulls.FetchPullRequest(ctx, f.repo, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), v.PullID)
	assert.Equal(t, schema.PullOpen, v.State)
	assert.Equal(t, "2024-03-01T12:00:00Z", v.UpdatedAt)
	require.NotNil(t, v.Author)
	assert.Equal(t, "codecov", v.Author.Username)
	require.NotNil(t, v.Head.Totals)
	assert.Equal(t, 75.0, v.Head.Totals.Coverage)
	require.NotNil(t, v.ComparedTo)
	assert.Equal(t, "base1", v.ComparedTo.CommitID)
	require.NotNil(t, v.CoverageChange)
	assert.Equal(t, 25.0, *v.CoverageChange)
}

func TestPullCommands_FetchPullRequest_UnknownCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPull(t, 3, schema.PullOpen, "missing", "", "")

	v, err := NewPullCommands(f.store).FetchPullRequest(ctx, f.repo, 3)
	require.NoError(t, err)
	assert.Equal(t, "missing", v.Head.CommitID)
	assert.Nil(t, v.Head.Totals)
	assert.Nil(t, v.Base)
	assert.Nil(t, v.ComparedTo)
	assert.Nil(t, v.CoverageChange)
}

func TestPullCommands_FetchPullRequest_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := NewPullCommands(f.store).FetchPullRequest(context.Background(), f.repo, 99)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestPullCommands_FetchPullRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPull(t, 1, schema.PullMerged, "a", "b", "")
	f.addPull(t, 2, schema.PullOpen, "c", "d", "")
	f.addPull(t, 3, schema.PullOpen, "e", "f", "")
	pulls := NewPullCommands(f.store)

	all, err := pulls.FetchPullRequests(ctx, f.repo, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].PullID)
	assert.Equal(t, int64(1), all[2].PullID)

	open, err := pulls.FetchPullRequests(ctx, f.repo, schema.PullOpen)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, p := range open {
		assert.Equal(t, schema.PullOpen, p.State)
	}

	_, err = pulls.FetchPullRequests(ctx, f.repo, "draft")
	assert.ErrorIs(t, err, contract.ErrValidation)
}
