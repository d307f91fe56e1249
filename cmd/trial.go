package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/outwriter"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/spf13/cobra"
)

// trialAction is one plan transition, or nil to only read the state.
type trialAction func(ctx context.Context, p *core.PlanService) error

func startTrial(ctx context.Context, p *core.PlanService) error { return p.StartTrial(ctx) }

func expireTrial(ctx context.Context, p *core.PlanService) error { return p.ExpireTrialPreemptively(ctx) }

// trialCmd groups the trial commands.
var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Inspect and change the plan trial of an owner",
	Long: `Manage the plan trial of an organization.

A trial is NOT_STARTED until started, ONGOING for 14 days and EXPIRED afterwards
or once expired early.

Subcommands:
  start  - Start a trial
  expire - End an ongoing trial now
  status - Print the trial state`,
}

var trialStartCmd = &cobra.Command{
	Use:     "start",
	Short:   "Start the trial of an owner",
	PreRunE: sharedSetupWrapper,
	Run:     trialRunner(startTrial),
}

var trialExpireCmd = &cobra.Command{
	Use:     "expire",
	Short:   "Expire the trial of an owner now",
	PreRunE: sharedSetupWrapper,
	Run:     trialRunner(expireTrial),
}

var trialStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Print the trial state of an owner",
	PreRunE: sharedSetupWrapper,
	Run:     trialRunner(nil),
}

// trialRunner builds the Run function of a trial command.
func trialRunner(action trialAction) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		defer CloseStores()
		ownerName, _ := cmd.Flags().GetString("owner")
		service, _ := cmd.Flags().GetString("service")
		now := func() time.Time { return time.Now().UTC() }
		summary, err := runTrial(rootCtx, store.Default.GetStore(), schema.Service(service), ownerName, action, now)
		if err != nil {
			contract.LogFatal("Cannot update trial", err)
		}
		if err := outwriter.NewOutWriter().WriteTrial(summary, cfg); err != nil {
			contract.LogFatal("Cannot write trial", err)
		}
	}
}

// runTrial applies action to the owner's plan and returns the resulting state.
func runTrial(ctx context.Context, st contract.OwnerStore, service schema.Service, ownerName string,
	action trialAction, now func() time.Time,
) (outwriter.TrialSummary, error) {
	owner, err := st.GetOwnerByUsername(ctx, service, ownerName)
	if errors.Is(err, contract.ErrNotFound) {
		return outwriter.TrialSummary{}, contract.NewCommandError("No such owner: %s", ownerName)
	}
	if err != nil {
		return outwriter.TrialSummary{}, err
	}

	plan := core.NewPlanService(owner, st).WithClock(now)
	if action != nil {
		if err := action(ctx, plan); err != nil {
			return outwriter.TrialSummary{}, fmt.Errorf("owner %s: %w", ownerName, err)
		}
	}
	return outwriter.TrialSummary{
		Owner:          owner.Username,
		Service:        owner.Service,
		Plan:           plan.PlanName(),
		TrialStatus:    plan.TrialStatus(),
		TrialStartDate: plan.TrialStartDate(),
		TrialEndDate:   plan.TrialEndDate(),
	}, nil
}
