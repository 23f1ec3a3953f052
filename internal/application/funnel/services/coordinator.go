package services

import (
	"context"
	"errors"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/optimistic"
)

// BusyGuard extends the in-process busy flag across server instances.
// Acquire reports false when another holder owns the pair.
type BusyGuard interface {
	Acquire(ctx context.Context, funnelID, resourceID string) (bool, error)
	Release(ctx context.Context, funnelID, resourceID string) error
}

// Coordinator mutates funnel assignment sets. Every mutation is checked by
// the funnel policy, applied optimistically and persisted with the full
// post-mutation set.
type Coordinator struct {
	board *Board
	guard BusyGuard
}

func NewCoordinator(board *Board, guard BusyGuard) *Coordinator {
	return &Coordinator{board: board, guard: guard}
}

// Assignable pairs a catalog resource with whether it can join a funnel.
// Reason is empty when CanAssign is true.
type Assignable struct {
	Resource  *catalog.Resource
	Assigned  bool
	Busy      bool
	CanAssign bool
	Reason    shared.Kind
}

// CanAssign reports whether resourceID may be assigned to funnelID right now.
func (c *Coordinator) CanAssign(funnelID, resourceID string) bool {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.funnels[funnelID]
	if !ok {
		return false
	}
	r, ok := b.resources.ResourceLocked(resourceID)
	if !ok {
		return false
	}
	return c.blockedLocked(st, r) == ""
}

// Assignable lists every catalog resource with its assignment affordance
// for funnelID, in catalog order.
func (c *Coordinator) Assignable(funnelID string) ([]Assignable, error) {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.stateLocked(funnelID)
	if err != nil {
		return nil, err
	}
	resources := b.resources.ResourcesLocked()
	out := make([]Assignable, 0, len(resources))
	for _, r := range resources {
		reason := c.blockedLocked(st, r)
		out = append(out, Assignable{
			Resource:  r,
			Assigned:  st.funnel.HasResource(r.ID()),
			Busy:      st.busy.Has(r.ID()),
			CanAssign: reason == "",
			Reason:    reason,
		})
	}
	return out, nil
}

// IsBusy reports whether an assign or unassign for the pair is in flight.
func (c *Coordinator) IsBusy(funnelID, resourceID string) bool {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.funnels[funnelID]
	return ok && st.busy.Has(resourceID)
}

// blockedLocked returns the kind of error an assign would fail with, or "".
func (c *Coordinator) blockedLocked(st *funnelState, r *catalog.Resource) shared.Kind {
	if err := c.checkAssignLocked(st, r); err != nil {
		return err.Kind
	}
	return ""
}

// checkAssignLocked is the single guard shared by the affordance accessors
// and Assign itself.
func (c *Coordinator) checkAssignLocked(st *funnelState, r *catalog.Resource) *shared.OperationError {
	b := c.board
	if b.readinessLocked(st).Locked() {
		return shared.NewError(shared.KindLocked, shared.EntityFunnel, st.funnel.Name(), nil)
	}
	if st.busy.Has(r.ID()) || st.deploying || id.IsTemp(r.ID()) || b.recategorizingLocked(r.ID()) {
		return shared.NewError(shared.KindBusy, shared.EntityResource, r.Name(), nil)
	}
	if err := b.policy.CheckAssign(b.viewLocked(st), r.ID(), r.ValueCategory()); err != nil {
		if errors.Is(err, shared.ErrAlreadyAssigned) {
			return shared.NewError(shared.KindAlreadyAssigned, shared.EntityResource, r.Name(), nil)
		}
		return shared.NewError(shared.KindLimitReached, shared.EntityFunnel, st.funnel.Name(), nil).
			WithDetail(string(r.ValueCategory()) + " capacity reached")
	}
	return nil
}

// Assign adds resourceID to funnelID.
func (c *Coordinator) Assign(ctx context.Context, funnelID, resourceID string) error {
	return c.mutate(ctx, funnelID, resourceID, true)
}

// Unassign removes resourceID from funnelID. Rejected with Locked while the
// funnel is generating or deployed.
func (c *Coordinator) Unassign(ctx context.Context, funnelID, resourceID string) error {
	return c.mutate(ctx, funnelID, resourceID, false)
}

func (c *Coordinator) mutate(ctx context.Context, funnelID, resourceID string, add bool) error {
	b := c.board
	var (
		st         *funnelState
		res        *catalog.Resource
		funnelName = funnelID
	)

	kind := events.OutcomeUnassigned
	op := "unassign resource"
	if add {
		kind = events.OutcomeAssigned
		op = "assign resource"
	}

	_, err := optimistic.Run(ctx, b.mu, optimistic.Mutation[struct{}]{
		Apply: func() error {
			var err error
			if st, err = b.stateLocked(funnelID); err != nil {
				return err
			}
			funnelName = st.funnel.Name()

			var ok bool
			if res, ok = b.resources.ResourceLocked(resourceID); !ok {
				return shared.NewError(shared.KindNotFound, shared.EntityResource, resourceID, nil)
			}

			if add {
				return c.applyAssignLocked(st, res)
			}
			return c.applyUnassignLocked(st, res)
		},
		Call: func(ctx context.Context) (struct{}, error) {
			if c.guard != nil {
				acquired, err := c.guard.Acquire(ctx, funnelID, resourceID)
				if err != nil {
					return struct{}{}, err
				}
				if !acquired {
					return struct{}{}, shared.NewError(shared.KindBusy, shared.EntityResource, res.Name(), nil)
				}
				defer func() {
					if err := c.guard.Release(context.WithoutCancel(ctx), funnelID, resourceID); err != nil {
						b.logger.Warnw("failed to release assignment guard",
							"funnel_id", funnelID, "resource_id", resourceID, "error", err)
					}
				}()
			}
			return struct{}{}, c.persist(ctx, st, resourceID, add)
		},
		Confirm: func(struct{}) {
			st.busy.Remove(resourceID)
			if !add {
				delete(st.pendingRemovals, resourceID)
			}
			b.readinessLocked(st)
		},
		Revert: func(error) {
			st.busy.Remove(resourceID)
			if add {
				st.funnel.RemoveResource(resourceID)
			} else {
				delete(st.pendingRemovals, resourceID)
				st.funnel.AddResource(resourceID)
			}
		},
	})

	o := events.NewOutcome(b.merchantID, kind, funnelID, b.now())
	o.FunnelID = funnelID
	o.FunnelName = funnelName
	o.Resource = resourceSnapshot(res)

	if err != nil {
		name := resourceID
		if res != nil {
			name = res.Name()
		}
		opErr := classifyAssignment(err, funnelName, name)
		b.logFailure(op, opErr, "funnel_id", funnelID, "resource_id", resourceID)
		b.publish(o.Failed(string(opErr.Kind), opErr.Message()))
		return opErr
	}

	b.logger.Infow(op+" succeeded", "funnel_id", funnelID, "resource_id", resourceID)
	b.publish(o)
	return nil
}

func (c *Coordinator) applyAssignLocked(st *funnelState, r *catalog.Resource) error {
	if err := c.checkAssignLocked(st, r); err != nil {
		return err
	}
	st.busy.Add(r.ID())
	st.funnel.AddResource(r.ID())
	return nil
}

func (c *Coordinator) applyUnassignLocked(st *funnelState, r *catalog.Resource) error {
	b := c.board
	if b.readinessLocked(st).Locked() {
		return shared.NewError(shared.KindLocked, shared.EntityFunnel, st.funnel.Name(), nil)
	}
	if st.busy.Has(r.ID()) || st.deploying || b.recategorizingLocked(r.ID()) {
		return shared.NewError(shared.KindBusy, shared.EntityResource, r.Name(), nil)
	}
	if !st.funnel.HasResource(r.ID()) {
		return shared.NewError(shared.KindNotAssigned, shared.EntityResource, r.Name(), nil)
	}
	st.busy.Add(r.ID())
	st.funnel.RemoveResource(r.ID())
	st.pendingRemovals[r.ID()] = r.ValueCategory()
	return nil
}

// persist writes the confirmed set plus this one change. Calls for the same
// funnel are serialized, so overlapping mutations never overwrite each
// other's confirmed state with an older set.
func (c *Coordinator) persist(ctx context.Context, st *funnelState, resourceID string, add bool) error {
	st.persist.Lock()
	defer st.persist.Unlock()

	b := c.board
	b.mu.Lock()
	next := st.confirmed.Clone()
	b.mu.Unlock()

	if add {
		next.Add(resourceID)
	} else {
		next.Remove(resourceID)
	}

	if err := b.repo.SetAssignments(ctx, st.funnel.ID(), next.Sorted()); err != nil {
		return err
	}

	b.mu.Lock()
	st.confirmed = next
	b.mu.Unlock()
	return nil
}

func classifyAssignment(err error, funnelName, resourceName string) *shared.OperationError {
	if opErr, ok := shared.AsOperationError(err); ok {
		return opErr
	}
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewError(shared.KindNotFound, shared.EntityFunnel, funnelName, nil)
	}
	return shared.NewError(shared.KindPersistenceFailure, shared.EntityResource, resourceName, err)
}
