package core

import (
	"context"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// CanActForOwner reports whether user may act on behalf of org: the user is
// the owner itself or a recorded member of the organization.
func CanActForOwner(ctx context.Context, store contract.OwnerStore, user, org *schema.Owner) (bool, error) {
	if user == nil || org == nil {
		return false, nil
	}
	if user.ID == org.ID {
		return true, nil
	}
	return store.IsOrgMember(ctx, org.ID, user.ID)
}

// CanViewRepository reports whether user may read repo of owner.
// Public repositories are readable by anyone, including anonymous users.
func CanViewRepository(ctx context.Context, store contract.OwnerStore, user, owner *schema.Owner, repo *schema.Repository) (bool, error) {
	if !repo.Private {
		return true, nil
	}
	return CanActForOwner(ctx, store, user, owner)
}

// AuthorizeOwner returns ErrUnauthenticated without a user and
// ErrUnauthorized when the user may not act for org.
func AuthorizeOwner(ctx context.Context, store contract.OwnerStore, org *schema.Owner) error {
	user := CurrentUser(ctx)
	if user == nil {
		return contract.ErrUnauthenticated
	}
	ok, err := CanActForOwner(ctx, store, user, org)
	if err != nil {
		return err
	}
	if !ok {
		return contract.ErrUnauthorized
	}
	return nil
}
