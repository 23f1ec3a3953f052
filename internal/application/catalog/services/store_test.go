package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/application/testutil"
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

const merchant = "m_test"

type storeFixture struct {
	store *Store
	repo  *testutil.MockCatalogRepository
	refs  testutil.StaticRefs
	pub   *testutil.RecordingPublisher
}

func newStoreFixture(t *testing.T, limit int) *storeFixture {
	t.Helper()
	f := &storeFixture{
		repo: testutil.NewMockCatalogRepository(),
		refs: testutil.StaticRefs{},
		pub:  &testutil.RecordingPublisher{},
	}
	f.store = NewStore(merchant, &sync.Mutex{}, f.repo, f.refs, nil, f.pub, Limits{MaxResources: limit}, logger.NewNop())
	return f
}

func draft(name string, c catalog.ValueCategory) catalog.Draft {
	return catalog.Draft{Name: name, OriginKind: catalog.OriginOwned, ValueCategory: c}
}

func strPtr(s string) *string { return &s }

func names(rs []*catalog.Resource) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name())
	}
	return out
}

func TestStore_CreateRespectsCatalogLimit(t *testing.T) {
	f := newStoreFixture(t, 2)
	ctx := context.Background()

	_, err := f.store.Create(ctx, draft("Ebook", catalog.CategoryPaid))
	require.NoError(t, err)
	_, err = f.store.Create(ctx, draft("Checklist", catalog.CategoryFree))
	require.NoError(t, err)

	_, err = f.store.Create(ctx, draft("Webinar", catalog.CategoryFree))
	require.ErrorIs(t, err, shared.ErrLimitReached)
	assert.Equal(t, 2, f.store.Count())
	assert.Len(t, f.store.List(), 2)
	assert.Equal(t, 2, f.repo.CreateCalls, "limit must be enforced before the remote call")

	last := f.pub.Last()
	require.NotNil(t, last)
	assert.False(t, last.Success)
	assert.Equal(t, events.OutcomeCreated, last.Kind)
	assert.Equal(t, string(shared.KindLimitReached), last.ErrorKind)
}

func TestStore_CreateReplacesTemporaryID(t *testing.T) {
	f := newStoreFixture(t, 10)
	gate := testutil.NewGate()
	f.repo.CreateFunc = func(ctx context.Context, m string, d catalog.Draft) (*catalog.Resource, error) {
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return f.repo.DefaultCreate(ctx, m, d)
	}
	changes, cancel := f.store.Subscribe()
	defer cancel()

	done := make(chan *catalog.Resource)
	go func() {
		r, err := f.store.Create(context.Background(), draft("Ebook", catalog.CategoryPaid))
		assert.NoError(t, err)
		done <- r
	}()

	gate.Entered()
	pending := f.store.List()
	require.Len(t, pending, 1)
	assert.True(t, strings.HasPrefix(pending[0].ID(), "tmp_"))
	assert.False(t, f.store.IsNameAvailable("ebook", ""), "optimistic entry holds its name")

	gate.Release(nil)
	created := <-done
	assert.True(t, strings.HasPrefix(created.ID(), "res_"))

	got, ok := f.store.Get(created.ID())
	require.True(t, ok)
	assert.Equal(t, "Ebook", got.Name())
	_, ok = f.store.Get(pending[0].ID())
	assert.False(t, ok)

	added := <-changes
	confirmed := <-changes
	assert.Equal(t, ChangeAdded, added.Op)
	assert.Equal(t, ChangeConfirmed, confirmed.Op)
	assert.Equal(t, pending[0].ID(), confirmed.PreviousID)
	assert.Equal(t, created.ID(), confirmed.ID)
}

func TestStore_FailedCreateRollsBack(t *testing.T) {
	f := newStoreFixture(t, 10)
	cause := errors.New("503 service unavailable")
	f.repo.CreateFunc = func(context.Context, string, catalog.Draft) (*catalog.Resource, error) {
		return nil, cause
	}

	_, err := f.store.Create(context.Background(), draft("Ebook", catalog.CategoryPaid))

	require.ErrorIs(t, err, shared.ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, f.store.Count())
	assert.True(t, f.store.IsNameAvailable("Ebook", ""))
}

func TestStore_CreateRejectsDuplicateName(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	_, err := f.store.Create(ctx, draft("Pro  Duct", catalog.CategoryPaid))
	require.NoError(t, err)

	_, err = f.store.Create(ctx, draft(" pro duct ", catalog.CategoryFree))

	require.ErrorIs(t, err, shared.ErrNameConflict)
	assert.Equal(t, 1, f.store.Count())
}

func TestStore_CreateRejectsInvalidDraft(t *testing.T) {
	f := newStoreFixture(t, 10)

	_, err := f.store.Create(context.Background(), catalog.Draft{
		Name:          "Partner Course",
		OriginKind:    catalog.OriginAffiliate,
		ValueCategory: catalog.CategoryPaid,
	})

	require.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Zero(t, f.repo.CreateCalls)
}

func TestStore_IsNameAvailable(t *testing.T) {
	f := newStoreFixture(t, 10)
	r, err := f.store.Create(context.Background(), draft("Pro Duct", catalog.CategoryPaid))
	require.NoError(t, err)

	assert.False(t, f.store.IsNameAvailable("pro  duct", ""))
	assert.False(t, f.store.IsNameAvailable("  PRO DUCT", ""))
	assert.True(t, f.store.IsNameAvailable("pro duct", r.ID()))
	assert.True(t, f.store.IsNameAvailable("product", ""))
}

func TestStore_UpdateNameConflictLeavesResourceUnchanged(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	a, err := f.store.Create(ctx, draft("Alpha", catalog.CategoryPaid))
	require.NoError(t, err)
	_, err = f.store.Create(ctx, draft("Beta", catalog.CategoryFree))
	require.NoError(t, err)

	_, err = f.store.Update(ctx, a.ID(), catalog.Patch{Name: strPtr("beta")})

	require.ErrorIs(t, err, shared.ErrNameConflict)
	got, _ := f.store.Get(a.ID())
	assert.Equal(t, "Alpha", got.Name())
	assert.Zero(t, f.repo.UpdateCalls)
}

func TestStore_UpdateOwnNameCaseChangeAllowed(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	a, err := f.store.Create(ctx, draft("alpha", catalog.CategoryPaid))
	require.NoError(t, err)

	updated, err := f.store.Update(ctx, a.ID(), catalog.Patch{Name: strPtr("Alpha")})

	require.NoError(t, err)
	assert.Equal(t, "Alpha", updated.Name())
	assert.Equal(t, 2, updated.Version())
}

func TestStore_UpdateUnknownID(t *testing.T) {
	f := newStoreFixture(t, 10)

	_, err := f.store.Update(context.Background(), "res_missing", catalog.Patch{Name: strPtr("x")})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStore_FailedUpdateRevertsToConfirmed(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	a, err := f.store.Create(ctx, draft("Alpha", catalog.CategoryPaid))
	require.NoError(t, err)

	cause := errors.New("timeout")
	f.repo.UpdateFunc = func(context.Context, string, string, catalog.Patch) (*catalog.Resource, error) {
		return nil, cause
	}
	_, err = f.store.Update(ctx, a.ID(), catalog.Patch{Name: strPtr("Alpha Prime")})

	require.ErrorIs(t, err, shared.ErrPersistence)
	got, _ := f.store.Get(a.ID())
	assert.Equal(t, "Alpha", got.Name())
	assert.True(t, f.store.IsNameAvailable("Alpha Prime", ""))
}

func TestStore_StaleUpdateResponseIsIgnored(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	a, err := f.store.Create(ctx, draft("v0", catalog.CategoryPaid))
	require.NoError(t, err)

	// The fake server applies each request on arrival, then holds the
	// response so the test controls delivery order.
	gates := map[string]*testutil.Gate{"v1": testutil.NewGate(), "v2": testutil.NewGate()}
	f.repo.UpdateFunc = func(ctx context.Context, m, rid string, p catalog.Patch) (*catalog.Resource, error) {
		res, err := f.repo.DefaultUpdate(ctx, m, rid, p)
		if werr := gates[*p.Name].Wait(ctx); werr != nil {
			return nil, werr
		}
		return res, err
	}

	update := func(name string) <-chan error {
		done := make(chan error, 1)
		go func() {
			_, err := f.store.Update(ctx, a.ID(), catalog.Patch{Name: strPtr(name)})
			done <- err
		}()
		return done
	}

	v1 := update("v1")
	gates["v1"].Entered()
	v2 := update("v2")
	gates["v2"].Entered()

	got, _ := f.store.Get(a.ID())
	assert.Equal(t, "v2", got.Name(), "latest submission is shown optimistically")

	// v2's response lands first, then the v1 straggler.
	gates["v2"].Release(nil)
	require.NoError(t, <-v2)
	gates["v1"].Release(nil)
	require.NoError(t, <-v1)

	got, _ = f.store.Get(a.ID())
	assert.Equal(t, "v2", got.Name())
	assert.Equal(t, 3, got.Version())
}

func TestStore_DeleteBlockedWhileAssigned(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	a, err := f.store.Create(ctx, draft("Alpha", catalog.CategoryPaid))
	require.NoError(t, err)

	f.refs[a.ID()] = []string{"fnl_1"}
	err = f.store.Delete(ctx, a.ID())
	require.ErrorIs(t, err, shared.ErrStillAssigned)
	assert.Equal(t, 1, f.store.Count())
	assert.Zero(t, f.repo.DeleteCalls)

	delete(f.refs, a.ID())
	require.NoError(t, f.store.Delete(ctx, a.ID()))
	assert.Zero(t, f.store.Count())

	last := f.pub.Last()
	assert.True(t, last.Success)
	assert.Equal(t, events.OutcomeDeleted, last.Kind)
	assert.Equal(t, "Alpha", last.Resource.Name)
}

func TestStore_FailedDeleteRestoresPosition(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	for _, n := range []string{"A", "B", "C"} {
		_, err := f.store.Create(ctx, draft(n, catalog.CategoryFree))
		require.NoError(t, err)
	}
	b := f.store.List()[1]

	gate := testutil.NewGate()
	f.repo.DeleteFunc = func(ctx context.Context, _, _ string) error { return gate.Wait(ctx) }

	done := make(chan error)
	go func() { done <- f.store.Delete(ctx, b.ID()) }()
	gate.Entered()

	assert.Equal(t, []string{"A", "C"}, names(f.store.List()))
	assert.Equal(t, 3, f.store.Count(), "pending deletion still occupies capacity")
	assert.False(t, f.store.IsNameAvailable("b", ""), "pending deletion still holds its name")

	gate.Release(errors.New("500"))
	require.ErrorIs(t, <-done, shared.ErrPersistence)
	assert.Equal(t, []string{"A", "B", "C"}, names(f.store.List()))
}

func TestStore_DeleteUnknownID(t *testing.T) {
	f := newStoreFixture(t, 10)
	assert.ErrorIs(t, f.store.Delete(context.Background(), "res_nope"), shared.ErrNotFound)
}

func TestStore_ResyncKeepsInflightEntries(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()
	_, err := f.store.Create(ctx, draft("Existing", catalog.CategoryPaid))
	require.NoError(t, err)

	// Another session added a resource directly.
	_, err = f.repo.DefaultCreate(ctx, merchant, draft("Remote", catalog.CategoryFree))
	require.NoError(t, err)

	gate := testutil.NewGate()
	f.repo.CreateFunc = func(ctx context.Context, m string, d catalog.Draft) (*catalog.Resource, error) {
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return f.repo.DefaultCreate(ctx, m, d)
	}
	done := make(chan error)
	go func() {
		_, err := f.store.Create(ctx, draft("Pending", catalog.CategoryFree))
		done <- err
	}()
	gate.Entered()

	require.NoError(t, f.store.Resync(ctx))
	assert.ElementsMatch(t, []string{"Existing", "Remote", "Pending"}, names(f.store.List()))

	gate.Release(nil)
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{"Existing", "Remote", "Pending"}, names(f.store.List()))

	// The server commits before its response arrives, so the resync already
	// carries the new row when the create is confirmed.
	f.repo.CreateFunc = func(ctx context.Context, m string, d catalog.Draft) (*catalog.Resource, error) {
		r, err := f.repo.DefaultCreate(ctx, m, d)
		if err != nil {
			return nil, err
		}
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}
	go func() {
		_, err := f.store.Create(ctx, draft("Late", catalog.CategoryFree))
		done <- err
	}()
	gate.Entered()

	require.NoError(t, f.store.Resync(ctx))
	gate.Release(nil)
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"Existing", "Remote", "Pending", "Late"}, names(f.store.List()))
	assert.Equal(t, 4, f.store.Count())
	for _, r := range f.store.List() {
		assert.False(t, strings.HasPrefix(r.ID(), "tmp_"))
	}
}

func TestStore_ConfirmedCreateSurvivesReload(t *testing.T) {
	f := newStoreFixture(t, 10)
	gate := testutil.NewGate()
	f.repo.CreateFunc = func(ctx context.Context, m string, d catalog.Draft) (*catalog.Resource, error) {
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return f.repo.DefaultCreate(ctx, m, d)
	}

	done := make(chan *catalog.Resource)
	go func() {
		r, err := f.store.Create(context.Background(), draft("Ebook", catalog.CategoryPaid))
		assert.NoError(t, err)
		done <- r
	}()
	gate.Entered()

	f.store.Load(nil)
	gate.Release(nil)
	created := <-done

	got, ok := f.store.Get(created.ID())
	require.True(t, ok)
	assert.Equal(t, "Ebook", got.Name())
	assert.Equal(t, 1, f.store.Count())
}

func TestStore_PublishesOneOutcomePerMutation(t *testing.T) {
	f := newStoreFixture(t, 10)
	ctx := context.Background()

	r, err := f.store.Create(ctx, draft("Alpha", catalog.CategoryPaid))
	require.NoError(t, err)
	_, err = f.store.Update(ctx, r.ID(), catalog.Patch{Description: strPtr("**new**")})
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, r.ID()))

	var kinds []events.OutcomeKind
	for _, o := range f.pub.Outcomes() {
		assert.True(t, o.Success)
		assert.Equal(t, merchant, o.MerchantID)
		kinds = append(kinds, o.Kind)
	}
	assert.Equal(t, []events.OutcomeKind{events.OutcomeCreated, events.OutcomeUpdated, events.OutcomeDeleted}, kinds)
}
