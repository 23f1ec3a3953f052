package deployment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/shared/logger"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SetDeployed(ctx context.Context, funnelID string, deployed bool, at time.Time) error {
	args := m.Called(ctx, funnelID, deployed, at)
	return args.Error(0)
}

func TestRepositoryDeployer(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store := new(mockStore)
	store.On("SetDeployed", ctx, "fnl_1", true, at).Return(nil).Once()
	store.On("SetDeployed", ctx, "fnl_1", false, at).Return(errors.New("db down")).Once()

	d := NewRepositoryDeployer(store, logger.NewNop())
	d.now = func() time.Time { return at }

	require.NoError(t, d.Deploy(ctx, "fnl_1"))

	err := d.TakeOffline(ctx, "fnl_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	store.AssertExpectations(t)
}
