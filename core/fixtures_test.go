package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/require"
)

// Two sessions: 0 is flagged unit, 1 is flagged integration.
const fixtureIndex = `{
	"files": {
		"src/a.py": [0, [1, 3, 2, 1, 0, "66.66667", 0, 0, 0, 2, 0, 0, null]],
		"lib/b.py": [1, [1, 1, 1, 0, 0, "100", 0, 0, 0, 1, 0, 0, null]]
	},
	"sessions": {"0": {"f": ["unit"]}, "1": {"f": ["integration"]}}
}`

var fixtureChunks = strings.Join([]string{
	"{}\n" +
		"[1, null, [[0, 1]]]\n" +
		"[1, null, [[0, 0], [1, 1]]]\n" +
		"[0, null, [[1, 0]]]",
	"{}\n" +
		"[2, null, [[0, 2]]]",
}, agg.ChunkSeparator)

var fixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *store.SQLStore
	archive *store.ArchiveStoreImpl
	reports *ReportService
	owner   *schema.Owner
	repo    *schema.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	archive, err := store.NewArchiveStore("archive_objects", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	owner := &schema.Owner{Service: schema.GitHub, Username: "codecov", Plan: "users-basic", APIToken: "token"}
	require.NoError(t, st.CreateOwner(ctx, owner))
	repo := &schema.Repository{OwnerID: owner.ID, Name: "worker", Branch: "main"}
	require.NoError(t, st.CreateRepository(ctx, repo))

	return &fixture{store: st, archive: archive, reports: NewReportService(archive), owner: owner, repo: repo}
}

// addCommit stores a complete commit carrying the fixture report.
func (f *fixture) addCommit(t *testing.T, sha string, at time.Time) *schema.Commit {
	t.Helper()
	c := &schema.Commit{
		RepositoryID: f.repo.ID,
		CommitID:     sha,
		Message:      "commit " + sha,
		Timestamp:    at,
		Branch:       "main",
		AuthorID:     &f.owner.ID,
		State:        schema.CommitComplete,
		Totals:       &schema.CommitTotals{Files: 2, Lines: 4, Hits: 3, Misses: 1, Coverage: "75.00000", Sessions: 2},
		Report:       []byte(fixtureIndex),
	}
	require.NoError(t, f.store.SaveCommit(context.Background(), c))
	require.NoError(t, f.archive.Set(agg.ArchivePath(f.repo.ID, sha), []byte(fixtureChunks), 1, at.Unix()))
	return c
}

func fixtureComponents() []contract.Component {
	return []contract.Component{
		{Name: "library", Paths: []string{"lib/"}},
		{Name: "docs", Paths: []string{"docs/"}},
	}
}

// recordingSubmitter keeps submitted tasks without running them.
type recordingSubmitter struct {
	tasks []Task
}

func (r *recordingSubmitter) Submit(task Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}
