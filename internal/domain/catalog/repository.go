package catalog

import "context"

// Repository is the remote persistence service for resources. Implementations
// return shared.ErrNotFound for a missing id and shared.ErrNameConflict for a
// name collision detected by storage. Any other error is a transport failure.
type Repository interface {
	Create(ctx context.Context, merchantID string, d Draft) (*Resource, error)
	Update(ctx context.Context, merchantID, id string, p Patch) (*Resource, error)
	Delete(ctx context.Context, merchantID, id string) error
	ListByMerchant(ctx context.Context, merchantID string) ([]*Resource, error)
}

// ReferenceChecker reports which funnels currently reference a resource,
// including funnels whose removal of it is not yet confirmed.
type ReferenceChecker interface {
	FunnelsReferencing(resourceID string) []string
}

// CategoryGuard vets a value category change against the funnels that
// reference a resource. Both methods are called with the workspace lock held.
type CategoryGuard interface {
	// HoldCategoryChange returns an error when a referencing funnel cannot
	// take the resource under to. On success the resource keeps occupying
	// from as well until ReleaseCategoryChange.
	HoldCategoryChange(resourceID string, from, to ValueCategory) error
	ReleaseCategoryChange(resourceID string)
}
