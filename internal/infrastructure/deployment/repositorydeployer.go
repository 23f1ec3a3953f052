// Package deployment provides the funnel.Deployer implementation.
package deployment

import (
	"context"
	"fmt"
	"time"

	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// DeploymentStore records a funnel's live status.
// *repository.FunnelRepositoryImpl satisfies it.
type DeploymentStore interface {
	SetDeployed(ctx context.Context, funnelID string, deployed bool, at time.Time) error
}

// RepositoryDeployer marks funnels live by persisting is_deployed. Serving
// the live funnel is left to the storefront renderer, which reads that flag.
type RepositoryDeployer struct {
	store  DeploymentStore
	logger logger.Interface
	now    func() time.Time
}

func NewRepositoryDeployer(store DeploymentStore, logger logger.Interface) *RepositoryDeployer {
	return &RepositoryDeployer{store: store, logger: logger, now: time.Now}
}

var _ funnel.Deployer = (*RepositoryDeployer)(nil)

func (d *RepositoryDeployer) Deploy(ctx context.Context, funnelID string) error {
	if err := d.store.SetDeployed(ctx, funnelID, true, d.now().UTC()); err != nil {
		return fmt.Errorf("failed to deploy funnel %s: %w", funnelID, err)
	}
	d.logger.Infow("funnel deployed", "funnel_id", funnelID)
	return nil
}

func (d *RepositoryDeployer) TakeOffline(ctx context.Context, funnelID string) error {
	if err := d.store.SetDeployed(ctx, funnelID, false, d.now().UTC()); err != nil {
		return fmt.Errorf("failed to take funnel %s offline: %w", funnelID, err)
	}
	d.logger.Infow("funnel taken offline", "funnel_id", funnelID)
	return nil
}
