package services

import (
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
)

// ChangeOp is what happened to an entry in the store.
type ChangeOp string

const (
	ChangeAdded     ChangeOp = "added"
	ChangeUpdated   ChangeOp = "updated"
	ChangeRemoved   ChangeOp = "removed"
	ChangeConfirmed ChangeOp = "confirmed"
	ChangeReverted  ChangeOp = "reverted"
	ChangeRestored  ChangeOp = "restored"
	ChangeReloaded  ChangeOp = "reloaded"
)

// Change is sent to subscribers on every applied, confirmed or reverted
// mutation. PreviousID is set when a temporary id was replaced by the
// server id. Reloaded changes carry no resource; re-read the list.
type Change struct {
	Op         ChangeOp
	ID         string
	PreviousID string
	Resource   *catalog.Resource
}

const watcherBuffer = 32

type watchers struct {
	subs map[int]chan Change
	next int
}

func newWatchers() watchers {
	return watchers{subs: make(map[int]chan Change)}
}

// notify must be called with the workspace lock held. Slow subscribers miss
// changes rather than block the store.
func (w *watchers) notify(c Change) {
	for _, ch := range w.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe streams store changes until cancel is called.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.watchers.next
	s.watchers.next++
	ch := make(chan Change, watcherBuffer)
	s.watchers.subs[key] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.watchers.subs[key]; ok {
			delete(s.watchers.subs, key)
			close(c)
		}
	}
	return ch, cancel
}

func snapshot(r *catalog.Resource) *events.ResourceSnapshot {
	return &events.ResourceSnapshot{
		ID:            r.ID(),
		Name:          r.Name(),
		ValueCategory: r.ValueCategory().String(),
		OriginKind:    r.OriginKind().String(),
	}
}

func snapshotOrName(r *catalog.Resource, name string) *events.ResourceSnapshot {
	if r != nil {
		return snapshot(r)
	}
	return &events.ResourceSnapshot{Name: name}
}

func (s *Store) publishSuccess(kind events.OutcomeKind, r *catalog.Resource) {
	o := events.NewOutcome(s.merchantID, kind, r.ID(), s.now())
	o.Resource = snapshot(r)
	s.publish(o)
}

func (s *Store) publishFailure(kind events.OutcomeKind, aggregateID string, snap *events.ResourceSnapshot, err *shared.OperationError) {
	o := events.NewOutcome(s.merchantID, kind, aggregateID, s.now()).Failed(string(err.Kind), err.Message())
	o.Resource = snap
	s.publish(o)
}

func (s *Store) publish(o *events.Outcome) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(o); err != nil {
		s.logger.Warnw("failed to publish outcome", "event_type", o.GetEventType(), "error", err)
	}
}
