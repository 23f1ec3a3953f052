package funnel

import (
	"context"

	"github.com/orris-inc/storefront/internal/domain/catalog"
)

// Generator assembles a flow from a funnel's resources. It is opaque; only
// success or failure matters to the gate.
type Generator interface {
	Generate(ctx context.Context, funnelID string, resources []*catalog.Resource) (Flow, error)
}

// Deployer makes a generated funnel live or takes it offline.
type Deployer interface {
	Deploy(ctx context.Context, funnelID string) error
	TakeOffline(ctx context.Context, funnelID string) error
}
