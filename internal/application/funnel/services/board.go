package services

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils/setutil"
)

// ResourceSource resolves catalog resources while the workspace lock is held.
// *catalogservices.Store satisfies it.
type ResourceSource interface {
	ResourceLocked(resourceID string) (*catalog.Resource, bool)
	ResourcesLocked() []*catalog.Resource
}

// funnelState is the in-memory side of one funnel.
type funnelState struct {
	funnel *funnel.Funnel
	// confirmed is the assignment set the repository last acknowledged.
	confirmed *setutil.Set[string]
	// pendingRemovals maps unassigns awaiting confirmation to the category
	// they still occupy.
	pendingRemovals map[string]catalog.ValueCategory
	busy            *setutil.Set[string]
	highlighted     *setutil.Set[string]
	generating      bool
	deploying       bool

	// persist serializes SetAssignments calls for this funnel so the
	// repository always sees full sets in the order they were confirmed.
	persist sync.Mutex
}

func newFunnelState(f *funnel.Funnel) *funnelState {
	return &funnelState{
		funnel:          f,
		confirmed:       setutil.New(f.AssignedIDs()...),
		pendingRemovals: make(map[string]catalog.ValueCategory),
		busy:            setutil.New[string](),
		highlighted:     setutil.New[string](),
	}
}

// Board holds the merchant's funnels and the resource to funnel reference
// index. It shares the workspace lock with the catalog store.
type Board struct {
	mu         sync.Locker
	merchantID string
	repo       funnel.Repository
	resources  ResourceSource
	policy     funnel.Policy
	publisher  events.EventPublisher
	logger     logger.Interface
	now        func() time.Time

	funnels map[string]*funnelState
	order   []string
	// recategorizing maps resources with a category change in flight to the
	// category they are leaving.
	recategorizing map[string]catalog.ValueCategory
}

func NewBoard(
	merchantID string,
	mu sync.Locker,
	repo funnel.Repository,
	resources ResourceSource,
	policy funnel.Policy,
	publisher events.EventPublisher,
	log logger.Interface,
) *Board {
	return &Board{
		mu:         mu,
		merchantID: merchantID,
		repo:       repo,
		resources:  resources,
		policy:     policy,
		publisher:  publisher,
		logger:     log.With("merchant_id", merchantID),
		now:        time.Now,
		funnels:    make(map[string]*funnelState),

		recategorizing: make(map[string]catalog.ValueCategory),
	}
}

// Policy returns the capacity and readiness thresholds in force.
func (b *Board) Policy() funnel.Policy {
	return b.policy
}

// Load replaces the board contents. Used once when the workspace is assembled.
func (b *Board) Load(funnels []*funnel.Funnel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.funnels = make(map[string]*funnelState, len(funnels))
	b.order = b.order[:0]
	for _, f := range funnels {
		b.funnels[f.ID()] = newFunnelState(f.Clone())
		b.order = append(b.order, f.ID())
	}
}

// Create persists a new, empty funnel and adds it to the board.
func (b *Board) Create(ctx context.Context, name string) (*funnel.Funnel, error) {
	f, err := funnel.NewFunnel("", b.merchantID, name, b.now())
	if err != nil {
		return nil, shared.NewError(shared.KindInvalidInput, shared.EntityFunnel, name, err).WithDetail(err.Error())
	}

	created, err := b.repo.Create(ctx, f)
	if err != nil {
		opErr := shared.FromPersistence(err, shared.EntityFunnel, f.Name())
		b.logger.Errorw("failed to create funnel", "name", f.Name(), "error", err)
		return nil, opErr
	}

	b.mu.Lock()
	b.funnels[created.ID()] = newFunnelState(created.Clone())
	b.order = append(b.order, created.ID())
	b.mu.Unlock()

	b.logger.Infow("funnel created", "funnel_id", created.ID(), "name", created.Name())
	return created, nil
}

// Get returns a copy of the funnel's current state.
func (b *Board) Get(funnelID string) (*funnel.Funnel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.funnels[funnelID]
	if !ok {
		return nil, false
	}
	return st.funnel.Clone(), true
}

// List returns copies of all funnels in creation order.
func (b *Board) List() []*funnel.Funnel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*funnel.Funnel, 0, len(b.order))
	for _, fid := range b.order {
		out = append(out, b.funnels[fid].funnel.Clone())
	}
	return out
}

// FunnelsReferencing lists funnels whose assignment set contains resourceID,
// counting unassigns that are still in flight. The caller must hold the
// workspace lock; the catalog store calls it from inside its own mutations.
func (b *Board) FunnelsReferencing(resourceID string) []string {
	var out []string
	for _, fid := range b.order {
		st := b.funnels[fid]
		_, pending := st.pendingRemovals[resourceID]
		if st.funnel.HasResource(resourceID) || pending {
			out = append(out, fid)
		}
	}
	return out
}

// HoldCategoryChange vets moving resourceID from one value category to
// another. Every funnel that references it must be unlocked, idle for that
// resource and have room under to. Until ReleaseCategoryChange the resource
// also occupies from, so reverting the change cannot overfill a funnel.
// The caller must hold the workspace lock.
func (b *Board) HoldCategoryChange(resourceID string, from, to catalog.ValueCategory) error {
	name := resourceID
	if r, ok := b.resources.ResourceLocked(resourceID); ok {
		name = r.Name()
	}
	if _, held := b.recategorizing[resourceID]; held {
		return shared.NewError(shared.KindBusy, shared.EntityResource, name, nil)
	}
	for _, fid := range b.FunnelsReferencing(resourceID) {
		st := b.funnels[fid]
		if b.readinessLocked(st).Locked() {
			return shared.NewError(shared.KindLocked, shared.EntityFunnel, st.funnel.Name(), nil)
		}
		if st.busy.Has(resourceID) || st.deploying {
			return shared.NewError(shared.KindBusy, shared.EntityResource, name, nil)
		}
		if err := b.policy.CheckCategoryChange(b.viewLocked(st), to); err != nil {
			return shared.NewError(shared.KindLimitReached, shared.EntityFunnel, st.funnel.Name(), nil).
				WithDetail(string(to) + " capacity reached")
		}
	}
	b.recategorizing[resourceID] = from
	return nil
}

// ReleaseCategoryChange drops the hold taken by HoldCategoryChange.
func (b *Board) ReleaseCategoryChange(resourceID string) {
	delete(b.recategorizing, resourceID)
}

func (b *Board) recategorizingLocked(resourceID string) bool {
	_, ok := b.recategorizing[resourceID]
	return ok
}

// holdsMemberLocked reports whether any of the funnel's resources has a
// category change in flight.
func (b *Board) holdsMemberLocked(st *funnelState) bool {
	for rid := range b.recategorizing {
		if st.funnel.HasResource(rid) {
			return true
		}
	}
	return false
}

// Members returns the funnel's current resources in assignment-id order.
func (b *Board) Members(funnelID string) ([]*catalog.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.stateLocked(funnelID)
	if err != nil {
		return nil, err
	}
	return b.resourcesLocked(st), nil
}

func (b *Board) stateLocked(funnelID string) (*funnelState, error) {
	st, ok := b.funnels[funnelID]
	if !ok {
		return nil, shared.NewError(shared.KindNotFound, shared.EntityFunnel, funnelID, nil)
	}
	return st, nil
}

func (b *Board) resourcesLocked(st *funnelState) []*catalog.Resource {
	ids := st.funnel.AssignedIDs()
	out := make([]*catalog.Resource, 0, len(ids))
	for _, rid := range ids {
		if r, ok := b.resources.ResourceLocked(rid); ok {
			out = append(out, r)
		}
	}
	return out
}

func (b *Board) membersLocked(st *funnelState) []funnel.Member {
	rs := b.resourcesLocked(st)
	out := make([]funnel.Member, 0, len(rs))
	for _, r := range rs {
		out = append(out, funnel.Member{ID: r.ID(), Category: r.ValueCategory()})
	}
	return out
}

func (b *Board) viewLocked(st *funnelState) funnel.View {
	v := funnel.View{Members: b.membersLocked(st)}
	for rid, c := range st.pendingRemovals {
		v.PendingRemovals = append(v.PendingRemovals, funnel.Member{ID: rid, Category: c})
	}
	for rid, c := range b.recategorizing {
		if st.funnel.HasResource(rid) {
			v.Held = append(v.Held, funnel.Member{ID: rid, Category: c})
		}
	}
	byID := func(x, y funnel.Member) int { return cmp.Compare(x.ID, y.ID) }
	slices.SortFunc(v.PendingRemovals, byID)
	slices.SortFunc(v.Held, byID)
	return v
}

// readinessLocked recomputes the funnel's readiness. Highlighted ids are
// dropped as soon as the aggregate requirements are met.
func (b *Board) readinessLocked(st *funnelState) funnel.Readiness {
	r := funnel.Evaluate(b.policy, b.membersLocked(st), funnel.Status{
		Deployed:   st.funnel.IsDeployed(),
		Generating: st.generating,
		HasFlow:    st.funnel.HasFlow(),
	})
	if len(r.Deficiencies) == 0 && st.highlighted.Len() > 0 {
		st.highlighted = setutil.New[string]()
	}
	r.Highlighted = st.highlighted.Sorted()
	return r
}

func resourceSnapshot(r *catalog.Resource) *events.ResourceSnapshot {
	if r == nil {
		return nil
	}
	return &events.ResourceSnapshot{
		ID:            r.ID(),
		Name:          r.Name(),
		ValueCategory: r.ValueCategory().String(),
		OriginKind:    r.OriginKind().String(),
	}
}

func (b *Board) publish(o *events.Outcome) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(o); err != nil {
		b.logger.Warnw("failed to publish outcome", "event_type", o.GetEventType(), "error", err)
	}
}

func (b *Board) logFailure(op string, err *shared.OperationError, kv ...interface{}) {
	kv = append(kv, "kind", err.Kind, "error", err)
	switch err.Kind {
	case shared.KindPersistenceFailure, shared.KindGenerationFailed:
		b.logger.Errorw("failed to "+op, kv...)
	default:
		b.logger.Warnw(op+" rejected", kv...)
	}
}
