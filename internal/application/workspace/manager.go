// Package workspace assembles the per-merchant catalog and funnel services
// around one shared lock and loads them on first use.
package workspace

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	catalogservices "github.com/orris-inc/storefront/internal/application/catalog/services"
	funnelservices "github.com/orris-inc/storefront/internal/application/funnel/services"
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// Workspace is one merchant's loaded state. The store and board share a
// single lock, so the delete-time reference check and assignments never
// interleave.
type Workspace struct {
	MerchantID  string
	Catalog     *catalogservices.Store
	Board       *funnelservices.Board
	Coordinator *funnelservices.Coordinator
	Gate        *funnelservices.Gate
}

// Dependencies are the collaborators shared by every workspace.
type Dependencies struct {
	CatalogRepo catalog.Repository
	FunnelRepo  funnel.Repository
	Publisher   events.EventPublisher
	Generator   funnel.Generator
	Deployer    funnel.Deployer
	// Guard is optional.
	Guard  funnelservices.BusyGuard
	Limits catalogservices.Limits
	Policy funnel.Policy
}

// Manager caches loaded workspaces by merchant.
type Manager struct {
	deps   Dependencies
	logger logger.Interface

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	loads      singleflight.Group
}

func NewManager(deps Dependencies, log logger.Interface) *Manager {
	return &Manager{
		deps:       deps,
		logger:     log,
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the merchant's workspace, loading it from the repositories on
// first use. Concurrent first calls share one load.
func (m *Manager) Get(ctx context.Context, merchantID string) (*Workspace, error) {
	if merchantID == "" {
		return nil, fmt.Errorf("merchant ID is required")
	}

	m.mu.RLock()
	ws, ok := m.workspaces[merchantID]
	m.mu.RUnlock()
	if ok {
		return ws, nil
	}

	// The load outlives any single caller, so one cancelled request
	// does not fail the others waiting on it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := m.loads.Do(merchantID, func() (interface{}, error) {
		m.mu.RLock()
		ws, ok := m.workspaces[merchantID]
		m.mu.RUnlock()
		if ok {
			return ws, nil
		}

		ws, err := m.load(loadCtx, merchantID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.workspaces[merchantID] = ws
		m.mu.Unlock()
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Evict drops a cached workspace; the next Get reloads it.
func (m *Manager) Evict(merchantID string) {
	m.mu.Lock()
	delete(m.workspaces, merchantID)
	m.mu.Unlock()
}

// Loaded returns the number of cached workspaces.
func (m *Manager) Loaded() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

func (m *Manager) load(ctx context.Context, merchantID string) (*Workspace, error) {
	var (
		resources []*catalog.Resource
		funnels   []*funnel.Funnel
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = m.deps.CatalogRepo.ListByMerchant(gctx, merchantID)
		if err != nil {
			return fmt.Errorf("failed to list resources: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		funnels, err = m.deps.FunnelRepo.ListByMerchant(gctx, merchantID)
		if err != nil {
			return fmt.Errorf("failed to list funnels: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.Errorw("failed to load workspace", "merchant_id", merchantID, "error", err)
		return nil, shared.NewError(shared.KindPersistenceFailure, shared.EntityCatalog, merchantID, err)
	}

	ws := m.assemble(merchantID)
	ws.Catalog.Load(resources)
	ws.Board.Load(funnels)

	m.logger.Infow("workspace loaded",
		"merchant_id", merchantID,
		"resources", len(resources),
		"funnels", len(funnels),
	)
	return ws, nil
}

func (m *Manager) assemble(merchantID string) *Workspace {
	mu := &sync.Mutex{}
	ws := &Workspace{MerchantID: merchantID}

	idx := funnelIndex{ws}
	ws.Catalog = catalogservices.NewStore(merchantID, mu, m.deps.CatalogRepo, idx, idx,
		m.deps.Publisher, m.deps.Limits, m.logger.Named("catalog"))
	ws.Board = funnelservices.NewBoard(merchantID, mu, m.deps.FunnelRepo, ws.Catalog,
		m.deps.Policy, m.deps.Publisher, m.logger.Named("funnel"))
	ws.Coordinator = funnelservices.NewCoordinator(ws.Board, m.deps.Guard)
	ws.Gate = funnelservices.NewGate(ws.Board, m.deps.Generator, m.deps.Deployer)
	return ws
}

// funnelIndex answers the catalog's reference and category questions from the
// board, which is assembled after the store.
type funnelIndex struct{ ws *Workspace }

func (i funnelIndex) FunnelsReferencing(resourceID string) []string {
	return i.ws.Board.FunnelsReferencing(resourceID)
}

func (i funnelIndex) HoldCategoryChange(resourceID string, from, to catalog.ValueCategory) error {
	return i.ws.Board.HoldCategoryChange(resourceID, from, to)
}

func (i funnelIndex) ReleaseCategoryChange(resourceID string) {
	i.ws.Board.ReleaseCategoryChange(resourceID)
}
