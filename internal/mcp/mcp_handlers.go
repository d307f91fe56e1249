package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
	fetcher contract.DiffFetcher
}

// trialStatus is the result of get_trial_status.
type trialStatus struct {
	Owner          string             `json:"owner"`
	Service        schema.Service     `json:"service"`
	Plan           string             `json:"plan"`
	TrialStatus    schema.TrialStatus `json:"trial_status"`
	TrialStartDate *time.Time         `json:"trial_start_date"`
	TrialEndDate   *time.Time         `json:"trial_end_date"`
}

func requestService(request mcp.CallToolRequest) (schema.Service, error) {
	svc := schema.Service(request.GetString("service", ""))
	if svc == "" {
		return "", nil
	}
	if _, ok := schema.ValidServices[svc]; !ok {
		return "", fmt.Errorf("invalid service %q", svc)
	}
	return svc, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// knownComponent reports whether id names a configured component.
// Without configured components every id is accepted.
func (h *toolHandler) knownComponent(id string) bool {
	if h.baseCfg == nil || len(h.baseCfg.Components) == 0 {
		return true
	}
	for _, c := range h.baseCfg.Components {
		if c.Name == id {
			return true
		}
	}
	return false
}

func (h *toolHandler) handleGetCommitReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerName := request.GetString("owner", "")
	repoName := request.GetString("repo", "")
	commitID := request.GetString("commitid", "")
	if ownerName == "" || repoName == "" || commitID == "" {
		return mcp.NewToolResultError("owner, repo and commitid are required"), nil
	}
	svc, err := requestService(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projection := schema.Projection(request.GetString("projection", string(schema.CommitProjection)))
	if _, ok := schema.ValidProjections[projection]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid projection %q", projection)), nil
	}

	st := h.mgr.GetStore()
	owner, repo, err := core.ResolveRepository(ctx, st, svc, ownerName, repoName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commit, err := st.GetCommit(ctx, repo.ID, commitID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	serializer := core.NewCommitSerializer(st, core.NewReportService(h.mgr.GetArchiveStore()), h.fetcher)
	out, err := serializer.SerializeCommit(ctx, core.CommitRequest{Owner: owner, Repo: repo}, commit, projection)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("serialization failed: %v", err)), nil
	}
	return jsonResult(out)
}

func (h *toolHandler) handleGetTrialStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerName := request.GetString("owner", "")
	if ownerName == "" {
		return mcp.NewToolResultError("owner is required"), nil
	}
	svc, err := requestService(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	org, err := h.mgr.GetStore().GetOwnerByUsername(ctx, svc, ownerName)
	if errors.Is(err, contract.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No such owner: %s", ownerName)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	plan := core.NewPlanService(org, h.mgr.GetStore())
	return jsonResult(trialStatus{
		Owner:          org.Username,
		Service:        org.Service,
		Plan:           plan.PlanName(),
		TrialStatus:    plan.TrialStatus(),
		TrialStartDate: plan.TrialStartDate(),
		TrialEndDate:   plan.TrialEndDate(),
	})
}

func (h *toolHandler) handleGetMeasurements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerName := request.GetString("owner", "")
	repoName := request.GetString("repo", "")
	if ownerName == "" || repoName == "" {
		return mcp.NewToolResultError("owner and repo are required"), nil
	}
	svc, err := requestService(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := schema.MeasurementName(request.GetString("name", string(schema.CoverageMeasurement)))
	if _, ok := schema.ValidMeasurementNames[name]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid measurement name %q", name)), nil
	}

	now := time.Now().UTC()
	filter := schema.MeasurementFilter{
		Name:         name,
		MeasurableID: request.GetString("measurable_id", ""),
		Branch:       request.GetString("branch", ""),
	}
	if s := request.GetString("start", ""); s != "" {
		if filter.Start, err = contract.ParseDateTime(s, now); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
		}
	}
	if s := request.GetString("end", ""); s != "" {
		if filter.End, err = contract.ParseDateTime(s, now); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid end: %v", err)), nil
		}
	}
	if name == schema.ComponentCoverageMeasurement && filter.MeasurableID != "" && !h.knownComponent(filter.MeasurableID) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown component %q", filter.MeasurableID)), nil
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return mcp.NewToolResultError("end must not be before start"), nil
	}

	st := h.mgr.GetStore()
	_, repo, err := core.ResolveRepository(ctx, st, svc, ownerName, repoName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filter.RepoID = repo.ID

	if request.GetBool("summaries", false) {
		summaries, err := st.ListSummaries(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return jsonResult(summaries)
	}
	measurements, err := st.ListMeasurements(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(measurements)
}
