package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Commit timestamps render as ISO 8601 in UTC with a Z suffix. Microseconds
// are printed with 6 digits, and only when non-zero.
const (
	timestampFormat      = "2006-01-02T15:04:05Z"
	timestampMicroFormat = "2006-01-02T15:04:05.000000Z"
)

// OwnerView is the client representation of a commit author.
type OwnerView struct {
	Service  schema.Service `json:"service"`
	Username string         `json:"username"`
	Name     string         `json:"name"`
	OwnerID  int64          `json:"ownerid"`
}

// authorView resolves an optional author id. Unknown authors render as nil.
func authorView(ctx context.Context, store contract.OwnerStore, id *int64) (*OwnerView, error) {
	if id == nil {
		return nil, nil
	}
	author, err := store.GetOwnerByID(ctx, *id)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &OwnerView{Service: author.Service, Username: author.Username, Name: author.Name, OwnerID: author.ID}, nil
}

// CommitRequest scopes a serialization to a viewer and a repository.
type CommitRequest struct {
	User  *schema.Owner // authenticated viewer, nil when anonymous
	Owner *schema.Owner
	Repo  *schema.Repository
}

// CommitSerializer builds the commit projections.
type CommitSerializer struct {
	store   contract.Store
	reports *ReportService
	fetcher contract.DiffFetcher
}

// NewCommitSerializer creates a serializer. fetcher may be nil, in which case src is null.
func NewCommitSerializer(store contract.Store, reports *ReportService, fetcher contract.DiffFetcher) *CommitSerializer {
	return &CommitSerializer{store: store, reports: reports, fetcher: fetcher}
}

// SerializeCommit renders commit with the field set of the projection, keys in order.
func (s *CommitSerializer) SerializeCommit(ctx context.Context, req CommitRequest, commit *schema.Commit, projection schema.Projection) (*orderedmap.OrderedMap[string, any], error) {
	fields, ok := commitFields(projection)
	if !ok {
		return nil, &contract.ValidationError{Msg: fmt.Sprintf("unknown projection %q", projection)}
	}
	return s.serialize(ctx, req, commit, fields)
}

// SerializeFlag renders the report of commit restricted to flag.
func (s *CommitSerializer) SerializeFlag(commit *schema.Commit, flag string) (FlagView, error) {
	report, err := s.reports.BuildReportFromCommit(commit)
	if err != nil {
		return FlagView{}, err
	}
	return SerializeFlag(report, flag), nil
}

func (s *CommitSerializer) serialize(ctx context.Context, req CommitRequest, commit *schema.Commit, fields []commitField) (*orderedmap.OrderedMap[string, any], error) {
	st := &commitState{ser: s, req: req, commit: commit}
	out := orderedmap.New[string, any]()
	for _, f := range fields {
		v, err := f.value(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("serialize %s of commit %s: %w", f.name, commit.CommitID, err)
		}
		out.Set(f.name, v)
	}
	return out, nil
}

// commitState memoizes the report and diff of one commit for one serialization.
type commitState struct {
	ser    *CommitSerializer
	req    CommitRequest
	commit *schema.Commit

	report      *agg.Report
	diff        *schema.Diff
	diffFetched bool
}

func (st *commitState) loadReport() (*agg.Report, error) {
	if st.report != nil {
		return st.report, nil
	}
	r, err := st.ser.reports.BuildReportFromCommit(st.commit)
	if err != nil {
		return nil, err
	}
	st.report = r
	return r, nil
}

func (st *commitState) loadDiff(ctx context.Context) (*schema.Diff, error) {
	if st.diffFetched {
		return st.diff, nil
	}
	st.diffFetched = true
	if st.ser.fetcher == nil {
		return nil, nil
	}
	d, err := st.ser.fetcher.FetchCommitDiff(ctx, st.req.User, st.req.Owner, st.req.Repo, st.commit.CommitID)
	if err != nil {
		return nil, err
	}
	st.diff = d
	return d, nil
}

type commitField struct {
	name  string
	value func(ctx context.Context, st *commitState) (any, error)
}

// commitFields returns the ordered field set of a projection.
func commitFields(p schema.Projection) ([]commitField, bool) {
	switch p {
	case schema.CommitProjection, "":
		return []commitField{fieldCommitID, fieldMessage, fieldTimestamp, fieldCIPassed, fieldAuthor, fieldBranch, fieldTotals, fieldState}, true
	case schema.ReportProjection:
		return []commitField{fieldReport, fieldCommitID, fieldTimestamp, fieldCIPassed, fieldRepository, fieldAuthor, fieldMessage}, true
	case schema.FileLevelReportProjection:
		return []commitField{fieldFileReport, fieldCommitID, fieldTimestamp, fieldCIPassed, fieldRepository, fieldAuthor, fieldMessage}, true
	case schema.SourceProjection:
		return sourceFields(), true
	case schema.ParentProjection:
		return []commitField{fieldSrc, fieldCommitID, fieldTimestamp, fieldCIPassed, fieldDiffReport, fieldRepository, fieldParent, fieldAuthor, fieldTotals}, true
	default:
		return nil, false
	}
}

func sourceFields() []commitField {
	return []commitField{fieldSrc, fieldDiffReport, fieldCommitID, fieldTimestamp, fieldCIPassed, fieldRepository, fieldBranch, fieldAuthor, fieldTotals, fieldMessage}
}

var (
	fieldCommitID = commitField{"commitid", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.CommitID, nil
	}}
	fieldMessage = commitField{"message", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.Message, nil
	}}
	fieldTimestamp = commitField{"timestamp", func(_ context.Context, st *commitState) (any, error) {
		return formatTimestamp(st.commit.Timestamp), nil
	}}
	fieldCIPassed = commitField{"ci_passed", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.CIPassed, nil
	}}
	fieldBranch = commitField{"branch", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.Branch, nil
	}}
	fieldState = commitField{"state", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.State, nil
	}}
	fieldRepository = commitField{"repository", func(_ context.Context, st *commitState) (any, error) {
		return st.commit.RepositoryID, nil
	}}
	fieldTotals = commitField{"totals", func(_ context.Context, st *commitState) (any, error) {
		return SerializeCommitTotals(st.commit.Totals), nil
	}}
	fieldAuthor = commitField{"author", func(ctx context.Context, st *commitState) (any, error) {
		return authorView(ctx, st.ser.store, st.commit.AuthorID)
	}}
	fieldReport = commitField{"report", func(_ context.Context, st *commitState) (any, error) {
		r, err := st.loadReport()
		if err != nil {
			return nil, err
		}
		return SerializeReport(r), nil
	}}
	fieldFileReport = commitField{"report", func(_ context.Context, st *commitState) (any, error) {
		r, err := st.loadReport()
		if err != nil {
			return nil, err
		}
		return SerializeReportWithoutLines(r), nil
	}}
	fieldDiffReport = commitField{"report", func(ctx context.Context, st *commitState) (any, error) {
		r, err := st.loadReport()
		if err != nil {
			return nil, err
		}
		d, err := st.loadDiff(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			ApplyDiff(r, d)
		}
		return SerializeReport(r), nil
	}}
	fieldSrc = commitField{"src", func(ctx context.Context, st *commitState) (any, error) {
		d, err := st.loadDiff(ctx)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, nil
		}
		return d, nil
	}}
)

// fieldParent nests the parent commit with the source field set, or null.
var fieldParent = commitField{"parent", serializeParent}

func serializeParent(ctx context.Context, st *commitState) (any, error) {
	if st.commit.ParentID == "" {
		return nil, nil
	}
	parent, err := st.ser.store.GetCommit(ctx, st.commit.RepositoryID, st.commit.ParentID)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st.ser.serialize(ctx, st.req, parent, sourceFields())
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(timestampFormat)
	}
	return t.Format(timestampMicroFormat)
}
