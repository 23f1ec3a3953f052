// Package services holds the catalog store, the in-memory authority over a
// merchant's resources.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/optimistic"
)

// Limits are the catalog-wide ceilings.
type Limits struct {
	MaxResources int
}

// entry is one resource slot. res is what readers see; confirmed is the last
// value the server acknowledged and is what a failed update reverts to.
type entry struct {
	res           *catalog.Resource
	confirmed     *catalog.Resource
	pendingCreate bool
	// pendingSeqs are the update submissions still awaiting a response.
	pendingSeqs []uint64
	lastSeq     uint64
	appliedSeq  uint64
}

func (e *entry) busy() bool {
	return e.pendingCreate || len(e.pendingSeqs) > 0
}

func (e *entry) newerPending(seq uint64) bool {
	return slices.ContainsFunc(e.pendingSeqs, func(s uint64) bool { return s > seq })
}

// deletion is an entry removed optimistically, kept so a failed delete can
// put it back where it was. It still holds its name and counts toward the limit.
type deletion struct {
	entry *entry
	index int
}

// Store owns the merchant's resource list. All mutations follow the
// apply, call, confirm-or-revert discipline under the workspace lock, which
// the store shares with the funnel board so that reference checks and
// removals are atomic with respect to assignments.
type Store struct {
	mu         sync.Locker
	merchantID string
	repo       catalog.Repository
	refs       catalog.ReferenceChecker
	categories catalog.CategoryGuard
	publisher  events.EventPublisher
	limits     Limits
	logger     logger.Interface
	now        func() time.Time

	entries  []*entry
	deleting map[string]*deletion

	watchers
	resync singleflight.Group
}

// NewStore builds an empty store. mu must be the workspace lock shared with
// the funnel board; refs and categories are consulted while mu is held.
// categories may be nil when no funnels can reference the catalog.
func NewStore(
	merchantID string,
	mu sync.Locker,
	repo catalog.Repository,
	refs catalog.ReferenceChecker,
	categories catalog.CategoryGuard,
	publisher events.EventPublisher,
	limits Limits,
	log logger.Interface,
) *Store {
	return &Store{
		mu:         mu,
		merchantID: merchantID,
		repo:       repo,
		refs:       refs,
		categories: categories,
		publisher:  publisher,
		limits:     limits,
		logger:     log.With("merchant_id", merchantID),
		now:        time.Now,
		deleting:   make(map[string]*deletion),
		watchers:   newWatchers(),
	}
}

// Load replaces the contents with resources without emitting outcomes.
// Used once when the workspace is assembled.
func (s *Store) Load(resources []*catalog.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	for _, r := range resources {
		s.entries = append(s.entries, &entry{res: r, confirmed: r})
	}
	s.notify(Change{Op: ChangeReloaded})
}

// Create validates d, appends it optimistically under a temporary id and
// persists it. The returned resource carries the server id.
func (s *Store) Create(ctx context.Context, d catalog.Draft) (*catalog.Resource, error) {
	tempID := id.NewTempID()
	var optimisticRes *catalog.Resource

	created, err := optimistic.Run(ctx, s.mu, optimistic.Mutation[*catalog.Resource]{
		Apply: func() error {
			r, err := catalog.NewResource(tempID, s.merchantID, d, s.now())
			if err != nil {
				return err
			}
			if !s.nameAvailableLocked(r.Name(), "") {
				return shared.NewError(shared.KindNameConflict, shared.EntityResource, r.Name(), nil)
			}
			if s.countLocked() >= s.limits.MaxResources {
				return shared.NewError(shared.KindLimitReached, shared.EntityCatalog, r.Name(), nil).
					WithDetail(fmt.Sprintf("limit is %d", s.limits.MaxResources))
			}
			optimisticRes = r
			s.entries = append(s.entries, &entry{res: r, pendingCreate: true})
			s.notify(Change{Op: ChangeAdded, ID: tempID, Resource: r})
			return nil
		},
		Call: func(ctx context.Context) (*catalog.Resource, error) {
			return s.repo.Create(ctx, s.merchantID, d)
		},
		Confirm: func(server *catalog.Resource) {
			i := s.indexLocked(tempID)
			switch {
			case s.indexLocked(server.ID()) >= 0 || s.deleting[server.ID()] != nil:
				// A resync already brought in the committed row.
				if i >= 0 {
					s.entries = slices.Delete(s.entries, i, i+1)
				}
				s.notify(Change{Op: ChangeRemoved, ID: tempID, Resource: optimisticRes})
				return
			case i < 0:
				s.entries = append(s.entries, &entry{res: server, confirmed: server})
			default:
				s.entries[i] = &entry{res: server, confirmed: server}
			}
			s.notify(Change{Op: ChangeConfirmed, ID: server.ID(), PreviousID: tempID, Resource: server})
		},
		Revert: func(error) {
			if i := s.indexLocked(tempID); i >= 0 {
				s.entries = slices.Delete(s.entries, i, i+1)
			}
			s.notify(Change{Op: ChangeRemoved, ID: tempID, Resource: optimisticRes})
		},
	})

	if err != nil {
		opErr := classify(err, d.Name)
		s.logFailure("create resource", opErr, "name", d.Name)
		s.publishFailure(events.OutcomeCreated, tempID, snapshotOrName(optimisticRes, d.Name), opErr)
		return nil, opErr
	}

	s.logger.Infow("resource created", "resource_id", created.ID(), "name", created.Name())
	s.publishSuccess(events.OutcomeCreated, created)
	return created, nil
}

// Update applies p optimistically. When several updates to one id overlap,
// a response is applied only if no later submission has already been
// confirmed; a failed update falls back to the last confirmed value.
func (s *Store) Update(ctx context.Context, resourceID string, p catalog.Patch) (*catalog.Resource, error) {
	var (
		seq    uint64
		before *catalog.Resource
		held   bool
	)
	release := func() {
		if held {
			s.categories.ReleaseCategoryChange(resourceID)
		}
	}

	updated, err := optimistic.Run(ctx, s.mu, optimistic.Mutation[*catalog.Resource]{
		Apply: func() error {
			e := s.entryLocked(resourceID)
			if e == nil {
				return shared.NewError(shared.KindNotFound, shared.EntityResource, resourceID, nil)
			}
			before = e.res
			if e.pendingCreate {
				return shared.NewError(shared.KindBusy, shared.EntityResource, e.res.Name(), nil)
			}
			next, err := e.res.Apply(p, s.now())
			if err != nil {
				return err
			}
			if name, ok := p.RenamesTo(); ok && !s.nameAvailableLocked(name, resourceID) {
				return shared.NewError(shared.KindNameConflict, shared.EntityResource, next.Name(), nil)
			}
			if from, to := e.res.ValueCategory(), next.ValueCategory(); from != to && s.categories != nil {
				if err := s.categories.HoldCategoryChange(resourceID, from, to); err != nil {
					return err
				}
				held = true
			}
			e.lastSeq++
			seq = e.lastSeq
			e.pendingSeqs = append(e.pendingSeqs, seq)
			e.res = next
			s.notify(Change{Op: ChangeUpdated, ID: resourceID, Resource: next})
			return nil
		},
		Call: func(ctx context.Context) (*catalog.Resource, error) {
			return s.repo.Update(ctx, s.merchantID, resourceID, p)
		},
		Confirm: func(server *catalog.Resource) {
			release()
			e := s.entryLocked(resourceID)
			if e == nil {
				return
			}
			e.pendingSeqs = slices.DeleteFunc(e.pendingSeqs, func(v uint64) bool { return v == seq })
			if seq <= e.appliedSeq {
				s.logger.Warnw("ignoring stale update response",
					"resource_id", resourceID, "seq", seq, "applied_seq", e.appliedSeq)
				return
			}
			e.appliedSeq = seq
			e.confirmed = server
			if !e.newerPending(seq) {
				e.res = server
				s.notify(Change{Op: ChangeConfirmed, ID: resourceID, Resource: server})
			}
		},
		Revert: func(error) {
			release()
			e := s.entryLocked(resourceID)
			if e == nil {
				return
			}
			e.pendingSeqs = slices.DeleteFunc(e.pendingSeqs, func(v uint64) bool { return v == seq })
			if !e.newerPending(seq) {
				e.res = e.confirmed
				s.notify(Change{Op: ChangeReverted, ID: resourceID, Resource: e.res})
			}
		},
	})

	if err != nil {
		name := resourceID
		if before != nil {
			name = before.Name()
		}
		opErr := classify(err, name)
		s.logFailure("update resource", opErr, "resource_id", resourceID)
		s.publishFailure(events.OutcomeUpdated, resourceID, snapshotOrName(before, name), opErr)
		return nil, opErr
	}

	s.logger.Infow("resource updated", "resource_id", resourceID, "name", updated.Name())
	s.publishSuccess(events.OutcomeUpdated, updated)
	return updated, nil
}

// Delete removes a resource that no funnel references. A failed delete
// restores the entry at its original position.
func (s *Store) Delete(ctx context.Context, resourceID string) error {
	var removed *catalog.Resource

	_, err := optimistic.Run(ctx, s.mu, optimistic.Mutation[struct{}]{
		Apply: func() error {
			i := s.indexLocked(resourceID)
			if i < 0 {
				return shared.NewError(shared.KindNotFound, shared.EntityResource, resourceID, nil)
			}
			e := s.entries[i]
			if e.busy() {
				return shared.NewError(shared.KindBusy, shared.EntityResource, e.res.Name(), nil)
			}
			if funnels := s.refs.FunnelsReferencing(resourceID); len(funnels) > 0 {
				return shared.NewError(shared.KindStillAssigned, shared.EntityResource, e.res.Name(), nil).
					WithDetail(fmt.Sprintf("assigned to %d funnel(s)", len(funnels)))
			}
			removed = e.res
			s.entries = slices.Delete(s.entries, i, i+1)
			s.deleting[resourceID] = &deletion{entry: e, index: i}
			s.notify(Change{Op: ChangeRemoved, ID: resourceID, Resource: removed})
			return nil
		},
		Call: func(ctx context.Context) (struct{}, error) {
			err := s.repo.Delete(ctx, s.merchantID, resourceID)
			if errors.Is(err, shared.ErrNotFound) {
				// Already gone on the server; the local removal stands.
				s.logger.Warnw("resource already deleted remotely", "resource_id", resourceID)
				err = nil
			}
			return struct{}{}, err
		},
		Confirm: func(struct{}) {
			delete(s.deleting, resourceID)
		},
		Revert: func(error) {
			del, ok := s.deleting[resourceID]
			if !ok {
				return
			}
			delete(s.deleting, resourceID)
			i := min(del.index, len(s.entries))
			s.entries = slices.Insert(s.entries, i, del.entry)
			s.notify(Change{Op: ChangeRestored, ID: resourceID, Resource: del.entry.res})
		},
	})

	if err != nil {
		name := resourceID
		if removed != nil {
			name = removed.Name()
		}
		opErr := classify(err, name)
		s.logFailure("delete resource", opErr, "resource_id", resourceID)
		s.publishFailure(events.OutcomeDeleted, resourceID, snapshotOrName(removed, name), opErr)
		return opErr
	}

	s.logger.Infow("resource deleted", "resource_id", resourceID, "name", removed.Name())
	s.publishSuccess(events.OutcomeDeleted, removed)
	return nil
}

// List returns the current resources in catalog order, including optimistic
// entries that are still being created.
func (s *Store) List() []*catalog.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResourcesLocked()
}

// Get returns the current value of a resource.
func (s *Store) Get(resourceID string) (*catalog.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResourceLocked(resourceID)
}

// Count is the number of resources occupying catalog capacity, which
// includes deletions that have not been confirmed yet.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

// IsNameAvailable reports whether name is free, ignoring excludingID.
func (s *Store) IsNameAvailable(name, excludingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nameAvailableLocked(name, excludingID)
}

// ResourceLocked is Get for callers already holding the workspace lock.
func (s *Store) ResourceLocked(resourceID string) (*catalog.Resource, bool) {
	if e := s.entryLocked(resourceID); e != nil {
		return e.res, true
	}
	return nil, false
}

// ResourcesLocked is List for callers already holding the workspace lock.
func (s *Store) ResourcesLocked() []*catalog.Resource {
	out := make([]*catalog.Resource, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.res)
	}
	return out
}

// Resync reloads the catalog from the repository. Concurrent calls share one
// fetch. Entries with a mutation in flight keep their optimistic value.
func (s *Store) Resync(ctx context.Context) error {
	_, err, _ := s.resync.Do("resync", func() (interface{}, error) {
		fresh, err := s.repo.ListByMerchant(ctx, s.merchantID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		inflight := make(map[string]*entry)
		for _, e := range s.entries {
			if e.busy() {
				inflight[e.res.ID()] = e
			}
		}

		next := make([]*entry, 0, len(fresh)+len(inflight))
		for _, r := range fresh {
			if _, ok := s.deleting[r.ID()]; ok {
				continue
			}
			if e, ok := inflight[r.ID()]; ok {
				e.confirmed = r
				next = append(next, e)
				delete(inflight, r.ID())
				continue
			}
			next = append(next, &entry{res: r, confirmed: r})
		}
		// Pending creates have temp ids the server has not seen yet.
		for _, e := range s.entries {
			if _, ok := inflight[e.res.ID()]; ok && e.pendingCreate {
				next = append(next, e)
			}
		}
		s.entries = next
		s.notify(Change{Op: ChangeReloaded})
		return nil, nil
	})

	if err != nil {
		s.logger.Errorw("failed to resync catalog", "error", err)
		return shared.NewError(shared.KindPersistenceFailure, shared.EntityCatalog, s.merchantID, err)
	}
	s.logger.Infow("catalog resynced", "count", s.Count())
	return nil
}

func (s *Store) entryLocked(resourceID string) *entry {
	if i := s.indexLocked(resourceID); i >= 0 {
		return s.entries[i]
	}
	return nil
}

func (s *Store) indexLocked(resourceID string) int {
	return slices.IndexFunc(s.entries, func(e *entry) bool { return e.res.ID() == resourceID })
}

func (s *Store) countLocked() int {
	return len(s.entries) + len(s.deleting)
}

func (s *Store) nameAvailableLocked(name, excludingID string) bool {
	key := catalog.NormalizeName(name)
	for _, e := range s.entries {
		if e.res.ID() != excludingID && e.res.NormalizedName() == key {
			return false
		}
	}
	for rid, d := range s.deleting {
		if rid != excludingID && d.entry.res.NormalizedName() == key {
			return false
		}
	}
	return true
}

// classify keeps validation errors raised in Apply and maps repository
// errors through the persistence taxonomy.
func classify(err error, name string) *shared.OperationError {
	if opErr, ok := shared.AsOperationError(err); ok {
		return opErr
	}
	return shared.FromPersistence(err, shared.EntityResource, name)
}

func (s *Store) logFailure(op string, err *shared.OperationError, kv ...interface{}) {
	kv = append(kv, "kind", err.Kind, "error", err)
	if err.Kind == shared.KindPersistenceFailure {
		s.logger.Errorw("failed to "+op, kv...)
		return
	}
	s.logger.Warnw(op+" rejected", kv...)
}
