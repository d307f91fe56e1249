package core

import (
	"context"
	"testing"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUser creates a user on the fixture's service, optionally a member of the fixture owner.
func (f *fixture) newUser(t *testing.T, name string, member bool) *schema.Owner {
	t.Helper()
	ctx := context.Background()
	user := &schema.Owner{Service: schema.GitHub, Username: name, Plan: "users-basic"}
	require.NoError(t, f.store.CreateOwner(ctx, user))
	if member {
		require.NoError(t, f.store.AddOrgMember(ctx, f.owner.ID, user.ID))
	}
	return user
}

func TestCanActForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.newUser(t, "jane", true)
	stranger := f.newUser(t, "mallory", false)

	tests := []struct {
		name string
		user *schema.Owner
		want bool
	}{
		{"owner itself", f.owner, true},
		{"member", member, true},
		{"stranger", stranger, false},
		{"anonymous", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanActForOwner(ctx, f.store, tt.user, f.owner)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanViewRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := f.newUser(t, "mallory", false)
	private := &schema.Repository{OwnerID: f.owner.ID, Name: "secret", Private: true}
	require.NoError(t, f.store.CreateRepository(ctx, private))

	ok, err := CanViewRepository(ctx, f.store, nil, f.owner, f.repo)
	require.NoError(t, err)
	assert.True(t, ok, "public repositories are readable anonymously")

	ok, err = CanViewRepository(ctx, f.store, stranger, f.owner, private)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CanViewRepository(ctx, f.store, f.owner, f.owner, private)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeOwner(t *testing.T) {
	f := newFixture(t)
	stranger := f.newUser(t, "mallory", false)

	assert.ErrorIs(t, AuthorizeOwner(context.Background(), f.store, f.owner), contract.ErrUnauthenticated)
	assert.ErrorIs(t, AuthorizeOwner(WithCurrentUser(context.Background(), stranger), f.store, f.owner), contract.ErrUnauthorized)
	assert.NoError(t, AuthorizeOwner(WithCurrentUser(context.Background(), f.owner), f.store, f.owner))
}

func TestActivateMeasurements_ForeignUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	private := &schema.Repository{OwnerID: f.owner.ID, Name: "secret", Private: true}
	require.NoError(t, f.store.CreateRepository(ctx, private))
	stranger := f.newUser(t, "mallory", false)
	member := f.newUser(t, "jane", true)

	sub := &recordingSubmitter{}
	cmds := NewRepositoryCommands(f.store, NewMeasurementService(f.store, f.reports, nil), sub)

	strangerCtx := WithCurrentUser(ctx, stranger)
	err := cmds.ActivateFlagsMeasurements(strangerCtx, "codecov", "worker")
	assert.ErrorIs(t, err, contract.ErrUnauthorized)

	err = cmds.ActivateFlagsMeasurements(strangerCtx, "codecov", "secret")
	assert.ErrorIs(t, err, contract.ErrNotFound, "private repositories are hidden from strangers")

	datasets, err := f.store.ListDatasets(ctx, f.repo.ID)
	require.NoError(t, err)
	assert.Empty(t, datasets)

	require.NoError(t, cmds.ActivateFlagsMeasurements(WithCurrentUser(ctx, member), "codecov", "secret"))
}
