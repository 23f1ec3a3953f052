package funnel

import "context"

// Repository persists funnels and their assignment relation. Missing funnels
// are reported as shared.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, f *Funnel) (*Funnel, error)
	Get(ctx context.Context, merchantID, id string) (*Funnel, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*Funnel, error)

	// SetAssignments replaces the funnel's whole resource set.
	SetAssignments(ctx context.Context, funnelID string, resourceIDs []string) error
	SaveFlow(ctx context.Context, funnelID string, flow Flow) error
}
