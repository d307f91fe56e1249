package core

import (
	"context"
	"testing"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTrialStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		end  *time.Time
		want schema.TrialStatus
	}{
		{"no end date", nil, schema.TrialNotStarted},
		{"end in the future", &future, schema.TrialOngoing},
		{"end in the past", &past, schema.TrialExpired},
		{"end is now", &now, schema.TrialOngoing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := &schema.Owner{TrialEndDate: tt.end}
			svc := NewPlanService(org, nil).WithClock(fixedClock(now))
			assert.Equal(t, tt.want, svc.TrialStatus())
		})
	}
}

func TestStartTrial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	svc := NewPlanService(f.owner, f.store).WithClock(fixedClock(now))

	require.NoError(t, svc.StartTrial(ctx))
	assert.Equal(t, schema.TrialOngoing, svc.TrialStatus())
	require.NotNil(t, svc.TrialStartDate())
	require.NotNil(t, svc.TrialEndDate())
	assert.True(t, now.Equal(*svc.TrialStartDate()))
	assert.True(t, now.Add(14*24*time.Hour).Equal(*svc.TrialEndDate()))

	stored, err := f.store.GetOwnerByID(ctx, f.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TrialEndDate)
	assert.True(t, svc.TrialEndDate().Equal(*stored.TrialEndDate))

	err = svc.StartTrial(ctx)
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Cannot start an existing trial", verr.Msg)
	assert.ErrorIs(t, err, contract.ErrTrialAlreadyStarted)
	assert.ErrorIs(t, err, contract.ErrValidation)
}

func TestStartTrial_Expired(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	end := now.Add(-24 * time.Hour)
	svc := NewPlanService(&schema.Owner{TrialEndDate: &end}, nil).WithClock(fixedClock(now))

	err := svc.StartTrial(context.Background())
	assert.ErrorIs(t, err, contract.ErrTrialAlreadyStarted)
}

func TestExpireTrialPreemptively(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := NewPlanService(f.owner, f.store).WithClock(fixedClock(start))

	err := svc.ExpireTrialPreemptively(ctx)
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Cannot expire an unstarted trial", verr.Msg)
	assert.ErrorIs(t, err, contract.ErrTrialNotStarted)

	require.NoError(t, svc.StartTrial(ctx))

	later := start.Add(3 * 24 * time.Hour)
	svc.WithClock(fixedClock(later))
	require.NoError(t, svc.ExpireTrialPreemptively(ctx))
	assert.Equal(t, schema.TrialOngoing, svc.TrialStatus(), "the end instant itself is not past")
	svc.WithClock(fixedClock(later.Add(time.Microsecond)))
	assert.Equal(t, schema.TrialExpired, svc.TrialStatus())
	assert.True(t, later.Equal(*svc.TrialEndDate()))
	assert.True(t, start.Equal(*svc.TrialStartDate()), "start date is kept")

	stored, err := f.store.GetOwnerByID(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(*stored.TrialEndDate))
}
