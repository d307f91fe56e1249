package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/go-chi/chi/v5"
)

// pathService validates the {service} URL parameter.
func pathService(r *http.Request) (schema.Service, error) {
	svc := schema.Service(chi.URLParam(r, "service"))
	if _, ok := schema.ValidServices[svc]; !ok {
		return "", &contract.NotFoundError{Kind: "service", Name: string(svc)}
	}
	return svc, nil
}

// repository resolves the owner and repository of the URL. Private
// repositories are hidden from users who may not act for their owner.
func (s *Server) repository(r *http.Request) (*schema.Owner, *schema.Repository, error) {
	svc, err := pathService(r)
	if err != nil {
		return nil, nil, err
	}
	ownerName, repoName := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	owner, repo, err := core.ResolveRepository(r.Context(), s.store, svc, ownerName, repoName)
	if err != nil {
		return nil, nil, err
	}
	visible, err := core.CanViewRepository(r.Context(), s.store, core.CurrentUser(r.Context()), owner, repo)
	if err != nil {
		return nil, nil, err
	}
	if !visible {
		return nil, nil, &contract.NotFoundError{Kind: "repository", Name: ownerName + "/" + repoName}
	}
	return owner, repo, nil
}

// GetCommit serves GET /internal/{service}/{owner}/{repo}/commits/{commitid}?projection=.
func (s *Server) GetCommit(w http.ResponseWriter, r *http.Request) {
	owner, repo, err := s.repository(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	commit, err := s.store.GetCommit(r.Context(), repo.ID, chi.URLParam(r, "commitid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	projection := schema.Projection(r.URL.Query().Get("projection"))
	if projection == "" {
		projection = schema.CommitProjection
	}
	req := core.CommitRequest{User: core.CurrentUser(r.Context()), Owner: owner, Repo: repo}
	out, err := s.commits.SerializeCommit(r.Context(), req, commit, projection)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCommitFlag serves GET .../commits/{commitid}/flags/{flag}.
func (s *Server) GetCommitFlag(w http.ResponseWriter, r *http.Request) {
	_, repo, err := s.repository(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	commit, err := s.store.GetCommit(r.Context(), repo.ID, chi.URLParam(r, "commitid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.commits.SerializeFlag(commit, chi.URLParam(r, "flag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListPulls serves GET .../{repo}/pulls?state=.
func (s *Server) ListPulls(w http.ResponseWriter, r *http.Request) {
	_, repo, err := s.repository(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pulls, err := s.pulls.FetchPullRequests(r.Context(), repo, schema.PullState(r.URL.Query().Get("state")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PullListResponse{Results: pulls})
}

// GetPull serves GET .../{repo}/pulls/{pullid}.
func (s *Server) GetPull(w http.ResponseWriter, r *http.Request) {
	_, repo, err := s.repository(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw := chi.URLParam(r, "pullid")
	pullID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, r, &contract.NotFoundError{Kind: "pull", Name: raw})
		return
	}
	pull, err := s.pulls.FetchPullRequest(r.Context(), repo, pullID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pull)
}

// planService resolves the owner of the URL for a user allowed to act for it.
func (s *Server) planService(r *http.Request) (*schema.Owner, *core.PlanService, error) {
	if core.CurrentUser(r.Context()) == nil {
		return nil, nil, contract.ErrUnauthenticated
	}
	svc, err := pathService(r)
	if err != nil {
		return nil, nil, err
	}
	name := chi.URLParam(r, "owner")
	org, err := s.store.GetOwnerByUsername(r.Context(), svc, name)
	if err != nil {
		return nil, nil, err
	}
	if err := core.AuthorizeOwner(r.Context(), s.store, org); err != nil {
		return nil, nil, err
	}
	return org, core.NewPlanService(org, s.store).WithClock(s.now), nil
}

func (s *Server) planResponse(org *schema.Owner, plan *core.PlanService) PlanResponse {
	return PlanResponse{
		Owner:          org.Username,
		Service:        org.Service,
		Plan:           plan.PlanName(),
		TrialStatus:    plan.TrialStatus(),
		TrialStartDate: plan.TrialStartDate(),
		TrialEndDate:   plan.TrialEndDate(),
	}
}

// GetPlan serves GET /internal/{service}/{owner}/plan.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	org, plan, err := s.planService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.planResponse(org, plan))
}

// StartTrial serves POST /internal/{service}/{owner}/plan/trial/start.
func (s *Server) StartTrial(w http.ResponseWriter, r *http.Request) {
	s.transitionTrial(w, r, func(ctx context.Context, p *core.PlanService) error { return p.StartTrial(ctx) })
}

// ExpireTrial serves POST /internal/{service}/{owner}/plan/trial/expire.
func (s *Server) ExpireTrial(w http.ResponseWriter, r *http.Request) {
	s.transitionTrial(w, r, func(ctx context.Context, p *core.PlanService) error { return p.ExpireTrialPreemptively(ctx) })
}

func (s *Server) transitionTrial(w http.ResponseWriter, r *http.Request, transition func(context.Context, *core.PlanService) error) {
	org, plan, err := s.planService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := transition(r.Context(), plan); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.planResponse(org, plan))
}
