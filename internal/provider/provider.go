// Package provider fetches commit diffs from the git provider hosting a repository.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds one outbound provider request.
const DefaultTimeout = 30 * time.Second

// Adapter talks to the provider of one repository on behalf of one user.
type Adapter interface {
	// GetCommitDiff returns the parsed diff introduced by a commit.
	GetCommitDiff(ctx context.Context, commitID string) (*schema.Diff, error)
}

// Service builds provider adapters. Outbound calls share one rate limiter per provider.
type Service struct {
	urls     map[schema.Service]string
	client   *http.Client
	git      contract.GitClient
	limiters map[schema.Service]*rate.Limiter
	log      logrus.FieldLogger
}

var _ contract.DiffFetcher = &Service{} // Compile-time check

// NewService creates a provider service from the validated config.
// A nil client uses an http.Client with DefaultTimeout.
func NewService(cfg *contract.Config, git contract.GitClient, client *http.Client, log logrus.FieldLogger) *Service {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	rps, burst := cfg.ProviderRate, cfg.ProviderBurst
	if rps <= 0 {
		rps = contract.DefaultProviderRate
	}
	if burst <= 0 {
		burst = contract.DefaultProviderBurst
	}
	limiters := make(map[schema.Service]*rate.Limiter, len(schema.ValidServices))
	for svc := range schema.ValidServices {
		limiters[svc] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Service{
		urls:     cfg.ProviderURLs,
		client:   client,
		git:      git,
		limiters: limiters,
		log:      log.WithField("component", "provider"),
	}
}

// GetAdapter returns the adapter of the service hosting repo under owner.
// The requesting user's provider token authenticates the calls when the user
// belongs to the same service; otherwise the owner's token is used.
func (s *Service) GetAdapter(user, owner *schema.Owner, repo *schema.Repository) (Adapter, error) {
	if owner == nil || repo == nil {
		return nil, fmt.Errorf("an owner and a repository are required")
	}
	token := owner.OAuthToken
	if user != nil && user.Service == owner.Service {
		token = user.OAuthToken
	}

	limiter := s.limiters[owner.Service]
	switch owner.Service {
	case schema.GitHub:
		return &githubAdapter{httpAdapter: s.httpAdapter(schema.GitHub, token, limiter), owner: owner.Username, repo: repo.Name}, nil
	case schema.GitLab:
		return &gitlabAdapter{httpAdapter: s.httpAdapter(schema.GitLab, token, limiter), owner: owner.Username, repo: repo.Name}, nil
	case schema.Bitbucket:
		return &bitbucketAdapter{httpAdapter: s.httpAdapter(schema.Bitbucket, token, limiter), owner: owner.Username, repo: repo.Name}, nil
	case schema.Local:
		if s.git == nil {
			return nil, fmt.Errorf("no git client configured for local repositories")
		}
		if repo.LocalPath == "" {
			return nil, fmt.Errorf("repository %s has no local path", repo.Slug(owner))
		}
		return &localAdapter{git: s.git, path: repo.LocalPath, limiter: limiter}, nil
	default:
		return nil, fmt.Errorf("unsupported service %q", owner.Service)
	}
}

func (s *Service) httpAdapter(svc schema.Service, token string, limiter *rate.Limiter) httpAdapter {
	return httpAdapter{baseURL: s.urls[svc], token: token, client: s.client, limiter: limiter}
}

// FetchCommitDiff fetches the diff of commitID and blocks until it is available.
// The adapter call runs in its own goroutine; cancelling ctx abandons the wait.
func (s *Service) FetchCommitDiff(ctx context.Context, user, owner *schema.Owner, repo *schema.Repository, commitID string) (*schema.Diff, error) {
	adapter, err := s.GetAdapter(user, owner, repo)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var diff *schema.Diff
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := adapter.GetCommitDiff(gctx, commitID)
		if err != nil {
			return err
		}
		diff = d
		return nil
	})
	err = g.Wait()

	entry := s.log.WithFields(logrus.Fields{
		"service":     owner.Service,
		"repo":        repo.Slug(owner),
		"commit":      commitID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("commit diff fetch failed")
		return nil, err
	}
	entry.Debug("commit diff fetched")
	return diff, nil
}
