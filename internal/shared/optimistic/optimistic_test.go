package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ConfirmsOnSuccess(t *testing.T) {
	var mu sync.Mutex
	state := []string{"a"}

	got, err := Run(context.Background(), &mu, Mutation[string]{
		Apply: func() error {
			state = append(state, "pending")
			return nil
		},
		Call: func(ctx context.Context) (string, error) {
			// the lock must be free while the remote call runs
			require.True(t, mu.TryLock())
			mu.Unlock()
			return "b", nil
		},
		Confirm: func(v string) { state[len(state)-1] = v },
		Revert:  func(error) { t.Fatal("revert must not run on success") },
	})

	require.NoError(t, err)
	assert.Equal(t, "b", got)
	assert.Equal(t, []string{"a", "b"}, state)
}

func TestRun_RevertsOnFailure(t *testing.T) {
	var mu sync.Mutex
	state := []string{"a"}
	boom := errors.New("connection reset")
	var reverted error

	_, err := Run(context.Background(), &mu, Mutation[string]{
		Apply: func() error {
			state = append(state, "pending")
			return nil
		},
		Call:    func(ctx context.Context) (string, error) { return "", boom },
		Confirm: func(string) { t.Fatal("confirm must not run on failure") },
		Revert: func(err error) {
			reverted = err
			state = state[:len(state)-1]
		},
	})

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, reverted, boom)
	assert.Equal(t, []string{"a"}, state)
}

func TestRun_ApplyErrorSkipsCall(t *testing.T) {
	var mu sync.Mutex
	rejected := errors.New("limit reached")
	called := false

	_, err := Run(context.Background(), &mu, Mutation[int]{
		Apply: func() error { return rejected },
		Call: func(ctx context.Context) (int, error) {
			called = true
			return 0, nil
		},
	})

	assert.ErrorIs(t, err, rejected)
	assert.False(t, called)
}
