// Package testutil provides in-memory collaborators for application layer tests.
package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/id"
)

// MockCatalogRepository keeps resources in memory. Any *Func field, when
// set, replaces the default behavior for that method.
type MockCatalogRepository struct {
	mu        sync.Mutex
	resources []*catalog.Resource

	CreateFunc func(ctx context.Context, merchantID string, d catalog.Draft) (*catalog.Resource, error)
	UpdateFunc func(ctx context.Context, merchantID, id string, p catalog.Patch) (*catalog.Resource, error)
	DeleteFunc func(ctx context.Context, merchantID, id string) error
	ListFunc   func(ctx context.Context, merchantID string) ([]*catalog.Resource, error)

	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

func NewMockCatalogRepository(seed ...*catalog.Resource) *MockCatalogRepository {
	return &MockCatalogRepository{resources: slices.Clone(seed)}
}

// Seed stores a resource directly and returns it.
func (m *MockCatalogRepository) Seed(r *catalog.Resource) *catalog.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, r)
	return r
}

func (m *MockCatalogRepository) Create(ctx context.Context, merchantID string, d catalog.Draft) (*catalog.Resource, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, merchantID, d)
	}
	return m.DefaultCreate(ctx, merchantID, d)
}

// DefaultCreate is the in-memory create, usable from a CreateFunc override.
func (m *MockCatalogRepository) DefaultCreate(_ context.Context, merchantID string, d catalog.Draft) (*catalog.Resource, error) {
	rid, err := id.NewResourceID()
	if err != nil {
		return nil, err
	}
	r, err := catalog.NewResource(rid, merchantID, d, time.Now())
	if err != nil {
		return nil, err
	}
	return m.Seed(r), nil
}

func (m *MockCatalogRepository) Update(ctx context.Context, merchantID, rid string, p catalog.Patch) (*catalog.Resource, error) {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, merchantID, rid, p)
	}
	return m.DefaultUpdate(ctx, merchantID, rid, p)
}

// DefaultUpdate is the in-memory update, usable from an UpdateFunc override.
func (m *MockCatalogRepository) DefaultUpdate(_ context.Context, _ string, rid string, p catalog.Patch) (*catalog.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.resources, func(r *catalog.Resource) bool { return r.ID() == rid })
	if i < 0 {
		return nil, shared.ErrNotFound
	}
	cur := m.resources[i]
	next, err := cur.Apply(p, time.Now())
	if err != nil {
		return nil, err
	}
	next = catalog.ReconstructResource(next.ID(), next.MerchantID(), next.Name(), next.Link(),
		next.OriginKind(), next.ValueCategory(), next.PromoCode(), next.Description(),
		next.CreatedAt(), next.UpdatedAt(), cur.Version()+1)
	m.resources[i] = next
	return next, nil
}

func (m *MockCatalogRepository) Delete(ctx context.Context, merchantID, rid string) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, merchantID, rid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.resources, func(r *catalog.Resource) bool { return r.ID() == rid })
	if i < 0 {
		return shared.ErrNotFound
	}
	m.resources = slices.Delete(m.resources, i, i+1)
	return nil
}

func (m *MockCatalogRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*catalog.Resource, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, merchantID)
	}
	return m.DefaultList(ctx, merchantID)
}

func (m *MockCatalogRepository) DefaultList(_ context.Context, merchantID string) ([]*catalog.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*catalog.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		if r.MerchantID() == merchantID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockFunnelRepository keeps funnels and assignments in memory.
type MockFunnelRepository struct {
	mu      sync.Mutex
	funnels map[string]*funnel.Funnel

	SetAssignmentsFunc func(ctx context.Context, funnelID string, resourceIDs []string) error
	SaveFlowFunc       func(ctx context.Context, funnelID string, flow funnel.Flow) error

	SetAssignmentsCalls int
}

func NewMockFunnelRepository() *MockFunnelRepository {
	return &MockFunnelRepository{funnels: make(map[string]*funnel.Funnel)}
}

func (m *MockFunnelRepository) Create(_ context.Context, f *funnel.Funnel) (*funnel.Funnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID() == "" {
		fid, err := id.NewFunnelID()
		if err != nil {
			return nil, err
		}
		f = funnel.ReconstructFunnel(fid, f.MerchantID(), f.Name(), f.AssignedIDs(), f.Flow(),
			f.IsDeployed(), f.DeployedAt(), f.CreatedAt(), f.UpdatedAt(), f.Version())
	}
	m.funnels[f.ID()] = f.Clone()
	return f, nil
}

func (m *MockFunnelRepository) Get(_ context.Context, merchantID, fid string) (*funnel.Funnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funnels[fid]
	if !ok || f.MerchantID() != merchantID {
		return nil, shared.ErrNotFound
	}
	return f.Clone(), nil
}

func (m *MockFunnelRepository) ListByMerchant(_ context.Context, merchantID string) ([]*funnel.Funnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*funnel.Funnel
	for _, f := range m.funnels {
		if f.MerchantID() == merchantID {
			out = append(out, f.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *funnel.Funnel) int { return a.CreatedAt().Compare(b.CreatedAt()) })
	return out, nil
}

func (m *MockFunnelRepository) SetAssignments(ctx context.Context, funnelID string, resourceIDs []string) error {
	m.mu.Lock()
	m.SetAssignmentsCalls++
	m.mu.Unlock()
	if m.SetAssignmentsFunc != nil {
		if err := m.SetAssignmentsFunc(ctx, funnelID, resourceIDs); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funnels[funnelID]
	if !ok {
		return shared.ErrNotFound
	}
	m.funnels[funnelID] = funnel.ReconstructFunnel(f.ID(), f.MerchantID(), f.Name(), resourceIDs, f.Flow(),
		f.IsDeployed(), f.DeployedAt(), f.CreatedAt(), time.Now(), f.Version()+1)
	return nil
}

func (m *MockFunnelRepository) SaveFlow(ctx context.Context, funnelID string, flow funnel.Flow) error {
	if m.SaveFlowFunc != nil {
		if err := m.SaveFlowFunc(ctx, funnelID, flow); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funnels[funnelID]
	if !ok {
		return shared.ErrNotFound
	}
	f.SetFlow(flow, time.Now())
	return nil
}

// StoredAssignments returns what the repository holds for funnelID.
func (m *MockFunnelRepository) StoredAssignments(funnelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.funnels[funnelID]; ok {
		return f.AssignedIDs()
	}
	return nil
}

// RecordingPublisher captures published outcomes in order.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *RecordingPublisher) Publish(e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *RecordingPublisher) PublishAll(es []events.DomainEvent) error {
	for _, e := range es {
		_ = p.Publish(e)
	}
	return nil
}

// Outcomes returns the recorded outcomes.
func (p *RecordingPublisher) Outcomes() []*events.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*events.Outcome
	for _, e := range p.events {
		if o, ok := e.(*events.Outcome); ok {
			out = append(out, o)
		}
	}
	return out
}

// Last returns the most recent outcome, or nil.
func (p *RecordingPublisher) Last() *events.Outcome {
	all := p.Outcomes()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Gate parks a remote call until the test releases it.
type Gate struct {
	entered chan struct{}
	release chan error
}

func NewGate() *Gate {
	return &Gate{entered: make(chan struct{}, 1), release: make(chan error, 1)}
}

// Wait is called from inside the fake remote call.
func (g *Gate) Wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entered blocks until the remote call has started.
func (g *Gate) Entered() {
	<-g.entered
}

// Release lets the parked call finish with err.
func (g *Gate) Release(err error) {
	g.release <- err
}

// StaticRefs is a catalog.ReferenceChecker backed by a map.
type StaticRefs map[string][]string

func (r StaticRefs) FunnelsReferencing(resourceID string) []string {
	return r[resourceID]
}
