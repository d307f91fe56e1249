package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"golang.org/x/time/rate"
)

// maxDiffBytes caps the size of a diff read from a provider.
// Larger responses fail instead of being parsed partially.
var maxDiffBytes int64 = 32 << 20

// httpAdapter holds what the HTTP providers share.
type httpAdapter struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// get performs one rate limited GET and returns the body of a 2xx response.
// Status codes map to ErrProviderAuth, ErrCommitNotFound and ErrProviderUnreachable.
func (a httpAdapter) get(ctx context.Context, path, accept, authScheme, commitID string) ([]byte, error) {
	if a.baseURL == "" {
		return nil, fmt.Errorf("%w: no API url configured", contract.ErrProviderUnreachable)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrProviderUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if a.token != "" {
		req.Header.Set("Authorization", authScheme+" "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrProviderUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", contract.ErrProviderAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", contract.ErrCommitNotFound, commitID)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", contract.ErrProviderUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiffBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", contract.ErrProviderUnreachable, err)
	}
	if int64(len(body)) > maxDiffBytes {
		return nil, fmt.Errorf("%w: diff exceeds %d bytes", contract.ErrProviderUnreachable, maxDiffBytes)
	}
	return body, nil
}

type githubAdapter struct {
	httpAdapter
	owner, repo string
}

// GetCommitDiff requests the commit in the diff media type.
func (a *githubAdapter) GetCommitDiff(ctx context.Context, commitID string) (*schema.Diff, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", url.PathEscape(a.owner), url.PathEscape(a.repo), url.PathEscape(commitID))
	body, err := a.get(ctx, path, "application/vnd.github.v3.diff", "token", commitID)
	if err != nil {
		return nil, err
	}
	return ParseDiff(body)
}

type gitlabAdapter struct {
	httpAdapter
	owner, repo string
}

// gitlabFileDiff is one entry of the GitLab commit diff endpoint.
type gitlabFileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
	Diff        string `json:"diff"`
}

// GetCommitDiff assembles the diff from the per-file hunks GitLab returns.
func (a *gitlabAdapter) GetCommitDiff(ctx context.Context, commitID string) (*schema.Diff, error) {
	project := url.PathEscape(a.owner + "/" + a.repo)
	path := fmt.Sprintf("/projects/%s/repository/commits/%s/diff", project, url.PathEscape(commitID))
	body, err := a.get(ctx, path, "application/json", "Bearer", commitID)
	if err != nil {
		return nil, err
	}

	var entries []gitlabFileDiff
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode gitlab diff: %w", contract.ErrProviderUnreachable, err)
	}
	diff := &schema.Diff{Files: make(map[string]*schema.DiffFile, len(entries))}
	for _, e := range entries {
		f, err := ParseHunks(e.Diff)
		if err != nil {
			return nil, err
		}
		key := e.NewPath
		switch {
		case e.NewFile:
			f.Type = schema.DiffNew
		case e.DeletedFile:
			f.Type = schema.DiffDeleted
			key = e.OldPath
		case e.RenamedFile:
			f.Before = e.OldPath
		}
		diff.Files[key] = f
	}
	return diff, nil
}

type bitbucketAdapter struct {
	httpAdapter
	owner, repo string
}

// GetCommitDiff requests the raw diff of the commit.
func (a *bitbucketAdapter) GetCommitDiff(ctx context.Context, commitID string) (*schema.Diff, error) {
	path := fmt.Sprintf("/2.0/repositories/%s/%s/diff/%s", url.PathEscape(a.owner), url.PathEscape(a.repo), url.PathEscape(commitID))
	body, err := a.get(ctx, path, "text/plain", "Bearer", commitID)
	if err != nil {
		return nil, err
	}
	return ParseDiff(body)
}

// localAdapter reads diffs from a checkout with the git binary.
type localAdapter struct {
	git     contract.GitClient
	path    string
	limiter *rate.Limiter
}

// GetCommitDiff reads the commit diff from the checkout.
func (a *localAdapter) GetCommitDiff(ctx context.Context, commitID string) (*schema.Diff, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrProviderUnreachable, err)
	}
	out, err := a.git.GetCommitDiff(ctx, a.path, commitID)
	if err != nil {
		return nil, classifyGitError(commitID, err)
	}
	return ParseDiff(out)
}

func classifyGitError(commitID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", contract.ErrProviderUnreachable, err)
	}
	msg := err.Error()
	for _, marker := range []string{"unknown revision", "bad object", "bad revision", "invalid object name"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s", contract.ErrCommitNotFound, commitID)
		}
	}
	return fmt.Errorf("%w: %w", contract.ErrProviderUnreachable, err)
}
