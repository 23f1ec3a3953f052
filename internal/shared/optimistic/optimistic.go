// Package optimistic implements the apply-then-confirm-or-revert mutation
// used by every in-memory store that mirrors remote state.
package optimistic

import (
	"context"
	"sync"
)

// Mutation describes one speculative change against state guarded by a lock.
//
// Apply validates and performs the local change. Returning an error aborts
// the mutation before Call runs. Call performs the remote operation without
// the lock held. Confirm or Revert then runs under the lock with the outcome.
type Mutation[T any] struct {
	Apply   func() error
	Call    func(ctx context.Context) (T, error)
	Confirm func(result T)
	Revert  func(err error)
}

// Run executes m. The error returned is the Apply error or the Call error,
// unchanged; callers wrap it into their own taxonomy.
func Run[T any](ctx context.Context, mu sync.Locker, m Mutation[T]) (T, error) {
	var zero T

	mu.Lock()
	err := m.Apply()
	mu.Unlock()
	if err != nil {
		return zero, err
	}

	result, err := m.Call(ctx)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		if m.Revert != nil {
			m.Revert(err)
		}
		return zero, err
	}
	if m.Confirm != nil {
		m.Confirm(result)
	}
	return result, nil
}
