package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"golang.org/x/sync/errgroup"
)

// BackfillOptions select what a timeseries backfill covers.
type BackfillOptions struct {
	Start   time.Time
	End     time.Time
	Owner   string
	Repo    string // empty for every repository of the owner
	Refresh bool
	Workers int
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	Owner        string
	Repositories int
	Measurements int
	Refreshed    bool
	Duration     time.Duration
}

// ExecuteBackfill saves the measurements of one repository, or of every
// non-deleted repository of the owner, then optionally refreshes the summaries.
// Unknown owners and repositories fail with a CommandError.
func ExecuteBackfill(ctx context.Context, store contract.Store, svc *MeasurementService, opts BackfillOptions) (BackfillResult, error) {
	started := time.Now()
	result := BackfillResult{Owner: opts.Owner}
	if !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return result, contract.NewCommandError("end date %s is before start date %s",
			opts.End.Format(time.RFC3339), opts.Start.Format(time.RFC3339))
	}

	owner, err := store.GetOwnerByUsername(ctx, "", opts.Owner)
	if errors.Is(err, contract.ErrNotFound) {
		return result, contract.NewCommandError("No such owner: %s", opts.Owner)
	}
	if err != nil {
		return result, err
	}

	var repos []*schema.Repository
	if opts.Repo != "" {
		repo, err := store.GetRepository(ctx, owner.ID, opts.Repo)
		if errors.Is(err, contract.ErrNotFound) {
			return result, contract.NewCommandError("No such repo: %s/%s", opts.Owner, opts.Repo)
		}
		if err != nil {
			return result, err
		}
		repos = append(repos, repo)
	} else {
		if repos, err = store.ListRepositories(ctx, owner.ID); err != nil {
			return result, err
		}
	}

	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for _, repo := range repos {
		g.Go(func() error {
			n, err := svc.SaveRepoMeasurements(gctx, repo, opts.Start, end)
			written.Add(int64(n))
			if err != nil {
				return fmt.Errorf("backfill %s: %w", repo.Slug(owner), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.Repositories = len(repos)
	result.Measurements = int(written.Load())

	if opts.Refresh {
		if err := svc.RefreshMeasurementSummaries(ctx, opts.Start, end); err != nil {
			return result, err
		}
		result.Refreshed = true
	}
	result.Duration = time.Since(started)
	return result, nil
}
