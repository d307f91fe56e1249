package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const singleDiff = "diff --git a/src/a.py b/src/a.py\n--- a/src/a.py\n+++ b/src/a.py\n@@ -1,2 +1,3 @@\n+first\n second\n-gone\n+third\n"

func newTestService(t *testing.T, svc schema.Service, baseURL string, git contract.GitClient) *Service {
	t.Helper()
	cfg := &contract.Config{
		ProviderURLs:  map[schema.Service]string{svc: baseURL},
		ProviderRate:  1000,
		ProviderBurst: 10,
	}
	log, _ := test.NewNullLogger()
	return NewService(cfg, git, nil, log)
}

func testOwner(svc schema.Service) *schema.Owner {
	return &schema.Owner{ID: 1, Service: svc, Username: "codecov", OAuthToken: "owner-token"}
}

func testRepo() *schema.Repository {
	return &schema.Repository{ID: 2, OwnerID: 1, Name: "worker", LocalPath: "/srv/worker"}
}

func TestGitHubAdapter(t *testing.T) {
	var gotPath, gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitHub, srv.URL, nil)
	user := &schema.Owner{ID: 9, Service: schema.GitHub, Username: "jane", OAuthToken: "user-token"}
	diff, err := s.FetchCommitDiff(context.Background(), user, testOwner(schema.GitHub), testRepo(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "/repos/codecov/worker/commits/abc123", gotPath)
	assert.Equal(t, "application/vnd.github.v3.diff", gotAccept)
	assert.Equal(t, "token user-token", gotAuth)
	require.Contains(t, diff.Files, "src/a.py")
	assert.Equal(t, map[int]struct{}{1: {}, 3: {}}, diff.Files["src/a.py"].AddedLines())
}

func TestGitHubAdapter_OwnerTokenWithoutUser(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitHub, srv.URL, nil)
	_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitHub), testRepo(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "token owner-token", gotAuth)
}

func TestAdapter_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, contract.ErrProviderAuth},
		{http.StatusForbidden, contract.ErrProviderAuth},
		{http.StatusNotFound, contract.ErrCommitNotFound},
		{http.StatusInternalServerError, contract.ErrProviderUnreachable},
		{http.StatusBadGateway, contract.ErrProviderUnreachable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			for _, svc := range []schema.Service{schema.GitHub, schema.GitLab, schema.Bitbucket} {
				s := newTestService(t, svc, srv.URL, nil)
				_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(svc), testRepo(), "abc123")
				assert.ErrorIs(t, err, tt.want, "service %s", svc)
			}
		})
	}
}

func TestAdapter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := newTestService(t, schema.GitHub, url, nil)
	_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitHub), testRepo(), "abc123")
	assert.ErrorIs(t, err, contract.ErrProviderUnreachable)
}

func TestAdapter_NoURLConfigured(t *testing.T) {
	s := newTestService(t, schema.GitHub, "", nil)
	_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitHub), testRepo(), "abc123")
	assert.ErrorIs(t, err, contract.ErrProviderUnreachable)
}

func TestGitLabAdapter(t *testing.T) {
	var gotURI, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		entries := []gitlabFileDiff{
			{OldPath: "src/a.py", NewPath: "src/a.py", Diff: "@@ -1,2 +1,3 @@\n+first\n second\n-gone\n+third\n"},
			{OldPath: "lib/b.py", NewPath: "lib/b.py", DeletedFile: true, Diff: "@@ -1 +0,0 @@\n-one\n"},
			{OldPath: "README.md", NewPath: "README.md", NewFile: true, Diff: "@@ -0,0 +1 @@\n+# readme\n"},
			{OldPath: "old.py", NewPath: "new.py", RenamedFile: true, Diff: ""},
		}
		_ = json.NewEncoder(w).Encode(entries)
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitLab, srv.URL, nil)
	diff, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitLab), testRepo(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "/projects/codecov%2Fworker/repository/commits/abc123/diff", gotURI)
	assert.Equal(t, "Bearer owner-token", gotAuth)
	require.Len(t, diff.Files, 4)
	assert.Equal(t, schema.DiffModified, diff.Files["src/a.py"].Type)
	assert.Equal(t, schema.DiffStats{Added: 2, Removed: 1}, diff.Files["src/a.py"].Stats)
	assert.Equal(t, schema.DiffDeleted, diff.Files["lib/b.py"].Type)
	assert.Equal(t, schema.DiffNew, diff.Files["README.md"].Type)
	assert.Equal(t, "old.py", diff.Files["new.py"].Before)
}

func TestGitLabAdapter_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitLab, srv.URL, nil)
	_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitLab), testRepo(), "abc123")
	assert.ErrorIs(t, err, contract.ErrProviderUnreachable)
}

func TestBitbucketAdapter(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.Bitbucket, srv.URL, nil)
	diff, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.Bitbucket), testRepo(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "/2.0/repositories/codecov/worker/diff/abc123", gotPath)
	assert.Contains(t, diff.Files, "src/a.py")
}

func TestLocalAdapter(t *testing.T) {
	git := &contract.MockGitClient{}
	git.On("GetCommitDiff", mock.Anything, "/srv/worker", "abc123").Return([]byte(singleDiff), nil)

	s := newTestService(t, schema.Local, "", git)
	diff, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.Local), testRepo(), "abc123")
	require.NoError(t, err)
	assert.Contains(t, diff.Files, "src/a.py")
	git.AssertExpectations(t)
}

func TestLocalAdapter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		gitErr error
		want   error
	}{
		{"unknown revision", errors.New("git command failed: fatal: bad object deadbeef"), contract.ErrCommitNotFound},
		{"ambiguous", errors.New("fatal: ambiguous argument 'x': unknown revision or path"), contract.ErrCommitNotFound},
		{"other", errors.New("git command failed: not a git repository"), contract.ErrProviderUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			git := &contract.MockGitClient{}
			git.On("GetCommitDiff", mock.Anything, "/srv/worker", "deadbeef").Return(nil, tt.gitErr)

			s := newTestService(t, schema.Local, "", git)
			_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.Local), testRepo(), "deadbeef")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetAdapter_Errors(t *testing.T) {
	s := newTestService(t, schema.GitHub, "http://localhost", nil)

	_, err := s.GetAdapter(nil, nil, testRepo())
	assert.Error(t, err)

	_, err = s.GetAdapter(nil, testOwner(schema.Local), testRepo())
	assert.ErrorContains(t, err, "no git client")

	git := &contract.MockGitClient{}
	s = newTestService(t, schema.Local, "", git)
	_, err = s.GetAdapter(nil, testOwner(schema.Local), &schema.Repository{Name: "worker"})
	assert.ErrorContains(t, err, "no local path")

	_, err = s.GetAdapter(nil, testOwner("svn"), testRepo())
	assert.ErrorContains(t, err, "unsupported service")
}

func TestFetchCommitDiff_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitHub, srv.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.FetchCommitDiff(ctx, nil, testOwner(schema.GitHub), testRepo(), "abc123")
	assert.ErrorIs(t, err, contract.ErrProviderUnreachable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGitHubAdapter_ForeignUserTokenNotSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitHub, srv.URL, nil)
	user := &schema.Owner{ID: 9, Service: schema.GitLab, Username: "jane", OAuthToken: "gitlab-token"}
	_, err := s.FetchCommitDiff(context.Background(), user, testOwner(schema.GitHub), testRepo(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "token owner-token", gotAuth)
}

func TestAdapter_OversizedDiff(t *testing.T) {
	defer func(limit int64) { maxDiffBytes = limit }(maxDiffBytes)
	maxDiffBytes = int64(len(singleDiff)) - 1

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(singleDiff))
	}))
	defer srv.Close()

	s := newTestService(t, schema.GitHub, srv.URL, nil)
	_, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitHub), testRepo(), "abc123")
	assert.ErrorIs(t, err, contract.ErrProviderUnreachable)
	assert.ErrorContains(t, err, "diff exceeds")

	maxDiffBytes = int64(len(singleDiff))
	diff, err := s.FetchCommitDiff(context.Background(), nil, testOwner(schema.GitHub), testRepo(), "abc123")
	require.NoError(t, err)
	assert.Contains(t, diff.Files, "src/a.py")
}
