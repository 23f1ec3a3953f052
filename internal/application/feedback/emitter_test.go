package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func outcome(kind events.OutcomeKind, name string) *events.Outcome {
	o := events.NewOutcome("m1", kind, "res_1", time.Now())
	o.Resource = &events.ResourceSnapshot{ID: "res_1", Name: name, ValueCategory: "FREE", OriginKind: "OWNED"}
	return o
}

func TestEmitter_AdvisoriesExpire(t *testing.T) {
	clock := newFakeClock()
	e := NewEmitter(Options{Expiry: 3 * time.Second, Clock: clock.Now})

	e.Push(outcome(events.OutcomeCreated, "Checklist"))
	clock.Advance(2 * time.Second)
	e.Push(outcome(events.OutcomeUpdated, "Checklist"))

	active := e.Active()
	require.Len(t, active, 2)
	assert.Equal(t, events.OutcomeCreated, active[0].Kind)
	assert.Equal(t, events.OutcomeUpdated, active[1].Kind)

	clock.Advance(time.Second)
	active = e.Active()
	require.Len(t, active, 1, "the first advisory expires exactly at its deadline")
	assert.Equal(t, events.OutcomeUpdated, active[0].Kind)

	clock.Advance(2 * time.Second)
	assert.Empty(t, e.Active())
}

func TestEmitter_QueueIsBounded(t *testing.T) {
	e := NewEmitter(Options{QueueSize: 2, Expiry: time.Minute})

	e.Push(outcome(events.OutcomeCreated, "A"))
	e.Push(outcome(events.OutcomeCreated, "B"))
	e.Push(outcome(events.OutcomeCreated, "C"))

	active := e.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "B", active[0].Resource.Name)
	assert.Equal(t, "C", active[1].Resource.Name)
}

func TestEmitter_Messages(t *testing.T) {
	failed := outcome(events.OutcomeDeleted, "Checklist").Failed("still_assigned", "Remove Checklist from every funnel before deleting it")
	assigned := outcome(events.OutcomeAssigned, "Checklist")
	assigned.FunnelName = "Spring Launch"
	generated := events.NewOutcome("m1", events.OutcomeGenerated, "fnl_1", time.Now())

	tests := []struct {
		name string
		in   *events.Outcome
		want string
	}{
		{"created", outcome(events.OutcomeCreated, "Checklist"), `"Checklist" was added to your catalog`},
		{"failure carries its message", failed, "Remove Checklist from every funnel before deleting it"},
		{"assigned names the funnel", assigned, `"Checklist" was added to "Spring Launch"`},
		{"funnel without name", generated, "Your funnel was generated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter(Options{})
			a := e.Push(tt.in)
			assert.Equal(t, tt.want, a.Message)
		})
	}
}

func TestEmitter_Subscribe(t *testing.T) {
	e := NewEmitter(Options{})
	e.Push(outcome(events.OutcomeCreated, "Before"))

	ch, cancel := e.Subscribe()
	e.Push(outcome(events.OutcomeCreated, "After"))

	select {
	case a := <-ch:
		assert.Equal(t, "After", a.Resource.Name)
	case <-time.After(time.Second):
		t.Fatal("advisory not delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Pushing after cancel must not panic on the closed channel.
	e.Push(outcome(events.OutcomeCreated, "Later"))
}

func TestHub_RoutesByMerchant(t *testing.T) {
	h := NewHub(Options{Expiry: time.Minute}, logger.NewNop())
	d := events.NewInMemoryEventDispatcher(logger.NewNop())
	require.NoError(t, d.Subscribe(events.AllEvents, h))

	a := events.NewOutcome("m_a", events.OutcomeCreated, "res_1", time.Now())
	b := events.NewOutcome("m_b", events.OutcomeDeleted, "res_2", time.Now())
	require.NoError(t, d.Publish(a))
	require.NoError(t, d.Publish(b))

	require.Len(t, h.Emitter("m_a").Active(), 1)
	assert.Equal(t, events.OutcomeCreated, h.Emitter("m_a").Active()[0].Kind)
	require.Len(t, h.Emitter("m_b").Active(), 1)
	assert.Empty(t, h.Emitter("m_c").Active())
}

func TestHub_IgnoresOtherEvents(t *testing.T) {
	h := NewHub(Options{}, logger.NewNop())

	assert.True(t, h.CanHandle("outcome.created"))
	assert.False(t, h.CanHandle("workspace.loaded"))

	err := h.Handle(events.NewOutcome("", events.OutcomeCreated, "res_1", time.Now()))
	assert.Error(t, err)
}
