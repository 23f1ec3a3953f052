package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/shared/logger"
)

func TestInMemoryEventDispatcher_DeliversInOrder(t *testing.T) {
	d := NewInMemoryEventDispatcher(logger.NewNop())

	var got []OutcomeKind
	require.NoError(t, d.Subscribe(AllEvents, NewHandlerFunc(AllEvents, func(e DomainEvent) error {
		got = append(got, e.(*Outcome).Kind)
		return nil
	})))

	now := time.Now()
	require.NoError(t, d.PublishAll([]DomainEvent{
		NewOutcome("m1", OutcomeCreated, "res_1", now),
		NewOutcome("m1", OutcomeAssigned, "fnl_1", now),
		NewOutcome("m1", OutcomeDeleted, "res_1", now),
	}))

	assert.Equal(t, []OutcomeKind{OutcomeCreated, OutcomeAssigned, OutcomeDeleted}, got)
}

func TestInMemoryEventDispatcher_TypedSubscription(t *testing.T) {
	d := NewInMemoryEventDispatcher(logger.NewNop())

	count := 0
	h := NewHandlerFunc("outcome.deleted", func(DomainEvent) error {
		count++
		return nil
	})
	require.NoError(t, d.Subscribe("outcome.deleted", h))

	_ = d.Publish(NewOutcome("m1", OutcomeCreated, "res_1", time.Now()))
	_ = d.Publish(NewOutcome("m1", OutcomeDeleted, "res_1", time.Now()))
	assert.Equal(t, 1, count)

	require.NoError(t, d.Unsubscribe("outcome.deleted", h))
	_ = d.Publish(NewOutcome("m1", OutcomeDeleted, "res_2", time.Now()))
	assert.Equal(t, 1, count)
}

func TestInMemoryEventDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryEventDispatcher(logger.NewNop())

	reached := false
	require.NoError(t, d.Subscribe(AllEvents, NewHandlerFunc(AllEvents, func(DomainEvent) error {
		return errors.New("subscriber down")
	})))
	require.NoError(t, d.Subscribe(AllEvents, NewHandlerFunc(AllEvents, func(DomainEvent) error {
		panic("worse")
	})))
	require.NoError(t, d.Subscribe(AllEvents, NewHandlerFunc(AllEvents, func(DomainEvent) error {
		reached = true
		return nil
	})))

	assert.NoError(t, d.Publish(NewOutcome("m1", OutcomeUpdated, "res_1", time.Now())))
	assert.True(t, reached)
}

func TestInMemoryEventDispatcher_RejectsBadSubscriptions(t *testing.T) {
	d := NewInMemoryEventDispatcher(logger.NewNop())
	assert.Error(t, d.Subscribe("", NewHandlerFunc(AllEvents, nil)))
	assert.Error(t, d.Subscribe("outcome.created", nil))
}

func TestOutcome_Failed(t *testing.T) {
	o := NewOutcome("m1", OutcomeAssigned, "fnl_1", time.Now()).Failed("limit_reached", "Funnel is full")

	assert.False(t, o.Success)
	assert.Equal(t, "outcome.assigned", o.GetEventType())
	assert.Equal(t, "limit_reached", o.ErrorKind)
	assert.NotEmpty(t, o.EventID)
}
