package api

import (
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/schema"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// PlanResponse describes the plan and trial of an owner.
type PlanResponse struct {
	Owner          string             `json:"owner"`
	Service        schema.Service     `json:"service"`
	Plan           string             `json:"plan"`
	TrialStatus    schema.TrialStatus `json:"trial_status"`
	TrialStartDate *time.Time         `json:"trial_start_date"`
	TrialEndDate   *time.Time         `json:"trial_end_date"`
}

// PullListResponse wraps the pull requests of a repository.
type PullListResponse struct {
	Results []*core.PullView `json:"results"`
}
