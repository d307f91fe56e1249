package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = `{
	"files": {
		"src/a.py": [0, [1, 3, 2, 1, 0, "66.66667", 0, 0, 0, 2, 0, 0, null]],
		"lib/b.py": [1, [1, 1, 1, 0, 0, "100", 0, 0, 0, 1, 0, 0, null]]
	},
	"sessions": {"0": {"f": ["unit"]}, "1": {"f": ["integration"]}}
}`

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type failingFetcher struct{ err error }

func (f failingFetcher) FetchCommitDiff(context.Context, *schema.Owner, *schema.Owner, *schema.Repository, string) (*schema.Diff, error) {
	return nil, f.err
}

type testServer struct {
	handler http.Handler
	store   *store.SQLStore
	owner   *schema.Owner
	private *schema.Repository
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	owner := &schema.Owner{Service: schema.GitHub, Username: "codecov", Plan: "users-basic", APIToken: "secret-token"}
	require.NoError(t, st.CreateOwner(ctx, owner))
	public := &schema.Repository{OwnerID: owner.ID, Name: "worker", Branch: "main"}
	require.NoError(t, st.CreateRepository(ctx, public))
	private := &schema.Repository{OwnerID: owner.ID, Name: "secret", Branch: "main", Private: true}
	require.NoError(t, st.CreateRepository(ctx, private))

	for _, repo := range []*schema.Repository{public, private} {
		require.NoError(t, st.SaveCommit(ctx, &schema.Commit{
			RepositoryID: repo.ID,
			CommitID:     "abc123",
			Message:      "add tests",
			Timestamp:    testNow,
			Branch:       "main",
			State:        schema.CommitComplete,
			Totals:       &schema.CommitTotals{Files: 2, Lines: 4, Hits: 3, Misses: 1, Coverage: "75.00000", Sessions: 2},
			Report:       []byte(testIndex),
		}))
	}

	log, _ := test.NewNullLogger()
	fetcher := failingFetcher{err: contract.ErrProviderUnreachable}
	commits := core.NewCommitSerializer(st, core.NewReportService(nil), fetcher)
	ts := &testServer{store: st, owner: owner, private: private, now: testNow}
	srv := NewServer(st, commits, log).WithClock(func() time.Time { return ts.now })
	ts.handler = srv.Handler()
	return ts
}

// addUser creates a user with its own API token, optionally a member of the test owner.
func (ts *testServer) addUser(t *testing.T, name string, member bool) {
	t.Helper()
	ctx := context.Background()
	user := &schema.Owner{Service: schema.GitHub, Username: name, Plan: "users-basic", APIToken: name + "-token"}
	require.NoError(t, ts.store.CreateOwner(ctx, user))
	if member {
		require.NoError(t, ts.store.AddOrgMember(ctx, ts.owner.ID, user.ID))
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetCommit(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/internal/github/codecov/worker/commits/abc123", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	// Keys come out in projection order.
	order := []string{`"commitid"`, `"message"`, `"timestamp"`, `"ci_passed"`, `"author"`, `"branch"`, `"totals"`, `"state"`}
	last := -1
	for _, key := range order {
		i := strings.Index(body, key)
		require.GreaterOrEqual(t, i, 0, key)
		assert.Greater(t, i, last, key)
		last = i
	}

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "abc123", out["commitid"])
	assert.Equal(t, "2024-03-01T12:00:00Z", out["timestamp"])
	totals := out["totals"].(map[string]any)
	assert.InDelta(t, 75.0, totals["coverage"], 0.001)
}

func TestGetCommit_FileReportProjection(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/internal/github/codecov/worker/commits/abc123?projection=file-report", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	report := out["report"].(map[string]any)
	files := report["files"].([]any)
	require.Len(t, files, 2)
	assert.NotContains(t, files[0].(map[string]any), "lines")
}

func TestGetCommit_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{"unknown service", "/internal/svn/codecov/worker/commits/abc123", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown owner", "/internal/github/ghost/worker/commits/abc123", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown repo", "/internal/github/codecov/ghost/commits/abc123", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown commit", "/internal/github/codecov/worker/commits/fff", "", http.StatusNotFound, "NOT_FOUND"},
		{"owner on other service", "/internal/gitlab/codecov/worker/commits/abc123", "", http.StatusNotFound, "NOT_FOUND"},
		{"private anonymous", "/internal/github/codecov/secret/commits/abc123", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad projection", "/internal/github/codecov/worker/commits/abc123?projection=full", "", http.StatusBadRequest, "VALIDATION"},
		{"provider down", "/internal/github/codecov/worker/commits/abc123?projection=src", "", http.StatusBadGateway, "PROVIDER_UNREACHABLE"},
		{"bad token", "/internal/github/codecov/worker/commits/abc123", "wrong", http.StatusUnauthorized, "UNAUTHENTICATED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestGetCommit_PrivateAuthenticated(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/internal/github/codecov/secret/commits/abc123", "secret-token")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetCommitFlag(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/internal/github/codecov/worker/commits/abc123/flags/unit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Name   string `json:"name"`
		Report struct {
			Files []json.RawMessage `json:"files"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "unit", view.Name)
}

func TestPlanEndpoints(t *testing.T) {
	ts := newTestServer(t)
	base := "/internal/github/codecov/plan"

	rec := ts.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, base, "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var plan PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, "users-basic", plan.Plan)
	assert.Equal(t, schema.TrialNotStarted, plan.TrialStatus)
	assert.Nil(t, plan.TrialEndDate)

	rec = ts.do(t, http.MethodPost, base+"/trial/expire", "secret-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot expire an unstarted trial", decodeError(t, rec).Error.Message)

	rec = ts.do(t, http.MethodPost, base+"/trial/start", "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, schema.TrialOngoing, plan.TrialStatus)
	require.NotNil(t, plan.TrialEndDate)
	assert.True(t, plan.TrialEndDate.Equal(testNow.Add(core.TrialLength)))

	rec = ts.do(t, http.MethodPost, base+"/trial/start", "secret-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot start an existing trial", decodeError(t, rec).Error.Message)

	rec = ts.do(t, http.MethodPost, base+"/trial/expire", "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, schema.TrialOngoing, plan.TrialStatus, "still ongoing at the end instant")

	ts.now = testNow.Add(time.Second)
	rec = ts.do(t, http.MethodGet, base, "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, schema.TrialExpired, plan.TrialStatus)

	stored, err := ts.store.GetOwnerByID(context.Background(), ts.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TrialEndDate)
	assert.True(t, stored.TrialEndDate.Equal(testNow))
}

func TestPlan_UnknownOwner(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/internal/github/ghost/plan", "secret-token")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForeignUser(t *testing.T) {
	ts := newTestServer(t)
	ts.addUser(t, "mallory", false)
	ts.addUser(t, "jane", true)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"stranger reads private commit", http.MethodGet, "/internal/github/codecov/secret/commits/abc123", "mallory-token", http.StatusNotFound},
		{"stranger reads private pulls", http.MethodGet, "/internal/github/codecov/secret/pulls", "mallory-token", http.StatusNotFound},
		{"stranger reads public commit", http.MethodGet, "/internal/github/codecov/worker/commits/abc123", "mallory-token", http.StatusOK},
		{"stranger reads plan", http.MethodGet, "/internal/github/codecov/plan", "mallory-token", http.StatusForbidden},
		{"stranger starts trial", http.MethodPost, "/internal/github/codecov/plan/trial/start", "mallory-token", http.StatusForbidden},
		{"member reads private commit", http.MethodGet, "/internal/github/codecov/secret/commits/abc123", "jane-token", http.StatusOK},
		{"member reads plan", http.MethodGet, "/internal/github/codecov/plan", "jane-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	stored, err := ts.store.GetOwnerByID(context.Background(), ts.owner.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TrialEndDate, "forbidden start leaves the trial untouched")
}

func TestPulls(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for _, p := range []*schema.Pull{
		{RepositoryID: ts.private.ID, PullID: 1, State: schema.PullMerged, Title: "old", Head: "abc123", Base: "base0", UpdatedAt: testNow},
		{RepositoryID: ts.private.ID, PullID: 2, State: schema.PullOpen, Title: "new", Head: "abc123", Base: "base0", UpdatedAt: testNow},
	} {
		require.NoError(t, ts.store.SavePull(ctx, p))
	}
	base := "/internal/github/codecov/secret/pulls"

	rec := ts.do(t, http.MethodGet, base, "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Results []struct {
			PullID int64            `json:"pullid"`
			State  schema.PullState `json:"state"`
			Head   struct {
				CommitID string `json:"commitid"`
				Totals   *struct {
					Coverage float64 `json:"coverage"`
				} `json:"totals"`
			} `json:"head"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Results, 2)
	assert.Equal(t, int64(2), list.Results[0].PullID)
	require.NotNil(t, list.Results[0].Head.Totals)
	assert.InDelta(t, 75.0, list.Results[0].Head.Totals.Coverage, 0.001)

	rec = ts.do(t, http.MethodGet, base+"?state=merged", "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Results, 1)
	assert.Equal(t, schema.PullMerged, list.Results[0].State)

	rec = ts.do(t, http.MethodGet, base+"/2", "secret-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var one map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "new", one["title"])
	assert.Nil(t, one["coverage_change"], "base commit was never uploaded")

	tests := []struct {
		path       string
		wantStatus int
	}{
		{base + "/99", http.StatusNotFound},
		{base + "/abc", http.StatusNotFound},
		{base + "?state=draft", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodGet, tt.path, "secret-token")
		assert.Equal(t, tt.wantStatus, rec.Code, tt.path)
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("token abc"))
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{contract.ErrUnauthenticated, http.StatusUnauthorized},
		{contract.ErrProviderAuth, http.StatusUnauthorized},
		{contract.ErrUnauthorized, http.StatusForbidden},
		{contract.ErrCommitNotFound, http.StatusNotFound},
		{&contract.NotFoundError{Kind: "owner", Name: "x"}, http.StatusNotFound},
		{&contract.ValidationError{Msg: "no"}, http.StatusBadRequest},
		{contract.ErrProviderUnreachable, http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		_, status := errorStatus(tt.err)
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
	}
}
