package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdto "github.com/orris-inc/storefront/internal/application/catalog/dto"
	catalogservices "github.com/orris-inc/storefront/internal/application/catalog/services"
	"github.com/orris-inc/storefront/internal/application/feedback"
	funneldto "github.com/orris-inc/storefront/internal/application/funnel/dto"
	apptestutil "github.com/orris-inc/storefront/internal/application/testutil"
	"github.com/orris-inc/storefront/internal/application/workspace"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/infrastructure/generation"
	"github.com/orris-inc/storefront/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/services/markdown"
)

const testMerchant = "m_test"

type stubDeployer struct {
	err error
}

func (d *stubDeployer) Deploy(context.Context, string) error      { return d.err }
func (d *stubDeployer) TakeOffline(context.Context, string) error { return d.err }

type fixture struct {
	hub       *feedback.Hub
	deployer  *stubDeployer
	resources *ResourceHandler
	funnels   *FunnelHandler
	feedback  *FeedbackHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()

	dispatcher := events.NewInMemoryEventDispatcher(log)
	hub := feedback.NewHub(feedback.Options{Expiry: time.Minute}, log)
	require.NoError(t, dispatcher.Subscribe(events.AllEvents, hub))

	md := markdown.NewRenderer()
	deployer := &stubDeployer{}
	manager := workspace.NewManager(workspace.Dependencies{
		CatalogRepo: apptestutil.NewMockCatalogRepository(),
		FunnelRepo:  apptestutil.NewMockFunnelRepository(),
		Publisher:   dispatcher,
		Generator:   generation.NewTemplateGenerator(md, log),
		Deployer:    deployer,
		Limits:      catalogservices.Limits{MaxResources: 5},
		Policy:      funnel.DefaultPolicy(),
	}, log)

	return &fixture{
		hub:       hub,
		deployer:  deployer,
		resources: NewResourceHandler(manager, md, log),
		funnels:   NewFunnelHandler(manager, log),
		feedback:  NewFeedbackHandler(hub, nil, log),
	}
}

type call struct {
	method string
	path   string
	body   interface{}
	params map[string]string
	query  map[string]string
}

func invoke(h gin.HandlerFunc, merchantID string, cl call) *httptest.ResponseRecorder {
	c, w := testutil.NewTestContext(cl.method, cl.path, cl.body)
	if merchantID != "" {
		testutil.SetMerchantContext(c, merchantID)
	}
	for k, v := range cl.params {
		testutil.SetURLParam(c, k, v)
	}
	if cl.query != nil {
		testutil.SetQueryParams(c, cl.query)
	}
	h(c)
	c.Writer.WriteHeaderNow()
	return w
}

func (f *fixture) createResource(t *testing.T, name, category string) catalogdto.ResourceResponse {
	t.Helper()
	w := invoke(f.resources.CreateResource, testMerchant, call{
		method: http.MethodPost,
		path:   "/resources",
		body:   map[string]string{"name": name, "origin_kind": "OWNED", "value_category": category},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res catalogdto.ResourceResponse
	_, err := testutil.DecodeData(w, &res)
	require.NoError(t, err)
	return res
}

func (f *fixture) createFunnel(t *testing.T, name string) funneldto.FunnelResponse {
	t.Helper()
	w := invoke(f.funnels.CreateFunnel, testMerchant, call{
		method: http.MethodPost,
		path:   "/funnels",
		body:   map[string]string{"name": name},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var fn funneldto.FunnelResponse
	_, err := testutil.DecodeData(w, &fn)
	require.NoError(t, err)
	return fn
}

func (f *fixture) assign(funnelID, resourceID string) *httptest.ResponseRecorder {
	return invoke(f.funnels.AssignResource, testMerchant, call{
		method: http.MethodPut,
		path:   "/funnels/" + funnelID + "/resources/" + resourceID,
		params: map[string]string{"id": funnelID, "resource_id": resourceID},
	})
}

func (f *fixture) funnelAction(h gin.HandlerFunc, funnelID string) *httptest.ResponseRecorder {
	return invoke(h, testMerchant, call{
		method: http.MethodPost,
		path:   "/funnels/" + funnelID,
		params: map[string]string{"id": funnelID},
	})
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp, err := testutil.DecodeData(w, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error, w.Body.String())
	assert.False(t, resp.Success)
	return resp.Error.Type
}

func TestResourceHandler_CreateResource(t *testing.T) {
	f := newFixture(t)

	t.Run("created with rendered description", func(t *testing.T) {
		w := invoke(f.resources.CreateResource, testMerchant, call{
			method: http.MethodPost,
			path:   "/resources",
			body: map[string]string{
				"name":           "Masterclass",
				"origin_kind":    "OWNED",
				"value_category": "PAID",
				"description":    "A **bold** offer",
			},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var res catalogdto.ResourceResponse
		resp, err := testutil.DecodeData(w, &res)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Regexp(t, `^res_`, res.ID)
		assert.False(t, res.Pending)
		assert.Contains(t, res.DescriptionHTML, "<strong>bold</strong>")
	})

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantType   string
	}{
		{
			name:       "normalized duplicate",
			body:       map[string]string{"name": "  MASTERCLASS ", "origin_kind": "OWNED", "value_category": "FREE"},
			wantStatus: http.StatusConflict,
			wantType:   "name_conflict",
		},
		{
			name:       "missing origin kind",
			body:       map[string]string{"name": "Ebook", "value_category": "FREE"},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
		{
			name:       "affiliate without link",
			body:       map[string]string{"name": "Partner", "origin_kind": "AFFILIATE", "value_category": "PAID"},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := invoke(f.resources.CreateResource, testMerchant, call{
				method: http.MethodPost,
				path:   "/resources",
				body:   tt.body,
			})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantType, errorType(t, w))
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := invoke(f.resources.CreateResource, "", call{
			method: http.MethodPost,
			path:   "/resources",
			body:   map[string]string{"name": "X", "origin_kind": "OWNED", "value_category": "FREE"},
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestResourceHandler_CatalogLimit(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		f.createResource(t, name, "FREE")
	}

	w := invoke(f.resources.CreateResource, testMerchant, call{
		method: http.MethodPost,
		path:   "/resources",
		body:   map[string]string{"name": "F", "origin_kind": "OWNED", "value_category": "FREE"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "limit_reached", errorType(t, w))
}

func TestResourceHandler_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	alpha := f.createResource(t, "Alpha", "PAID")
	f.createResource(t, "Beta", "FREE")

	update := func(id string, body interface{}) *httptest.ResponseRecorder {
		return invoke(f.resources.UpdateResource, testMerchant, call{
			method: http.MethodPatch,
			path:   "/resources/" + id,
			body:   body,
			params: map[string]string{"id": id},
		})
	}

	t.Run("rename", func(t *testing.T) {
		w := update(alpha.ID, map[string]string{"name": "Alpha Prime"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res catalogdto.ResourceResponse
		_, err := testutil.DecodeData(w, &res)
		require.NoError(t, err)
		assert.Equal(t, "Alpha Prime", res.Name)
		assert.Equal(t, alpha.ID, res.ID)
	})

	t.Run("rename onto another resource", func(t *testing.T) {
		w := update(alpha.ID, map[string]string{"name": "beta"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "name_conflict", errorType(t, w))
	})

	t.Run("empty patch", func(t *testing.T) {
		w := update(alpha.ID, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong id prefix", func(t *testing.T) {
		w := update("fnl_abc", map[string]string{"name": "X"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := update("res_missing", map[string]string{"name": "X"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", errorType(t, w))
	})

	t.Run("delete", func(t *testing.T) {
		w := invoke(f.resources.DeleteResource, testMerchant, call{
			method: http.MethodDelete,
			path:   "/resources/" + alpha.ID,
			params: map[string]string{"id": alpha.ID},
		})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = invoke(f.resources.ListResources, testMerchant, call{method: http.MethodGet, path: "/resources"})
		require.Equal(t, http.StatusOK, w.Code)
		var list testutil.ListData[catalogdto.ResourceResponse]
		_, err := testutil.DecodeData(w, &list)
		require.NoError(t, err)
		require.Equal(t, 1, list.Total)
		assert.Equal(t, "Beta", list.Items[0].Name)
	})
}

func TestResourceHandler_CheckNameAvailability(t *testing.T) {
	f := newFixture(t)
	alpha := f.createResource(t, "Alpha", "PAID")

	check := func(query map[string]string) (int, catalogdto.NameAvailabilityResponse) {
		w := invoke(f.resources.CheckNameAvailability, testMerchant, call{
			method: http.MethodGet,
			path:   "/resources/availability",
			query:  query,
		})
		var out catalogdto.NameAvailabilityResponse
		_, err := testutil.DecodeData(w, &out)
		require.NoError(t, err)
		return w.Code, out
	}

	code, out := check(map[string]string{"name": " alpha "})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, out.Available)

	_, out = check(map[string]string{"name": "ALPHA", "exclude_id": alpha.ID})
	assert.True(t, out.Available)

	_, out = check(map[string]string{"name": "Gamma"})
	assert.True(t, out.Available)

	code, _ = check(map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestResourceHandler_ResyncResources(t *testing.T) {
	f := newFixture(t)
	f.createResource(t, "Alpha", "PAID")

	w := invoke(f.resources.ResyncResources, testMerchant, call{method: http.MethodPost, path: "/resources/resync"})
	require.Equal(t, http.StatusOK, w.Code)

	var list testutil.ListData[catalogdto.ResourceResponse]
	_, err := testutil.DecodeData(w, &list)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestFunnelHandler_Lifecycle(t *testing.T) {
	f := newFixture(t)
	paid1 := f.createResource(t, "Course", "PAID")
	paid2 := f.createResource(t, "Coaching", "PAID")
	free1 := f.createResource(t, "Checklist", "FREE")
	fn := f.createFunnel(t, "Launch")
	assert.Regexp(t, `^fnl_`, fn.ID)
	assert.Equal(t, string(funnel.StateInsufficient), fn.State)

	readiness := func() funneldto.ReadinessResponse {
		w := invoke(f.funnels.GetReadiness, testMerchant, call{
			method: http.MethodGet,
			path:   "/funnels/" + fn.ID + "/readiness",
			params: map[string]string{"id": fn.ID},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var r funneldto.ReadinessResponse
		_, err := testutil.DecodeData(w, &r)
		require.NoError(t, err)
		return r
	}

	t.Run("generate before ready", func(t *testing.T) {
		w := f.funnelAction(f.funnels.GenerateFunnel, fn.ID)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "insufficient", errorType(t, w))
	})

	t.Run("assign until ready", func(t *testing.T) {
		for _, id := range []string{paid1.ID, paid2.ID, free1.ID} {
			w := f.assign(fn.ID, id)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
		r := readiness()
		assert.Equal(t, string(funnel.StateReadyToGenerate), r.State)
		assert.Empty(t, r.Deficiencies)
		assert.Equal(t, 3, r.Total)
		assert.Equal(t, 1, r.Free)
	})

	t.Run("assigning twice", func(t *testing.T) {
		w := f.assign(fn.ID, paid1.ID)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_assigned", errorType(t, w))
	})

	t.Run("assignable lists the catalog", func(t *testing.T) {
		w := invoke(f.funnels.ListAssignable, testMerchant, call{
			method: http.MethodGet,
			path:   "/funnels/" + fn.ID + "/assignable",
			params: map[string]string{"id": fn.ID},
		})
		require.Equal(t, http.StatusOK, w.Code)
		var list testutil.ListData[funneldto.AssignableResponse]
		_, err := testutil.DecodeData(w, &list)
		require.NoError(t, err)
		assert.Equal(t, 3, list.Total)
		for _, item := range list.Items {
			assert.True(t, item.Assigned)
			assert.False(t, item.CanAssign)
		}
	})

	t.Run("assigned resource cannot be deleted", func(t *testing.T) {
		w := invoke(f.resources.DeleteResource, testMerchant, call{
			method: http.MethodDelete,
			path:   "/resources/" + free1.ID,
			params: map[string]string{"id": free1.ID},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "still_assigned", errorType(t, w))
	})

	t.Run("deploy before generate", func(t *testing.T) {
		w := f.funnelAction(f.funnels.DeployFunnel, fn.ID)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "invalid_state", errorType(t, w))
	})

	t.Run("generate", func(t *testing.T) {
		w := f.funnelAction(f.funnels.GenerateFunnel, fn.ID)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got funneldto.FunnelResponse
		_, err := testutil.DecodeData(w, &got)
		require.NoError(t, err)
		assert.Equal(t, string(funnel.StateGenerated), got.State)
		assert.NotEmpty(t, got.Flow)
	})

	t.Run("deploy locks the funnel", func(t *testing.T) {
		w := f.funnelAction(f.funnels.DeployFunnel, fn.ID)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got funneldto.FunnelResponse
		_, err := testutil.DecodeData(w, &got)
		require.NoError(t, err)
		assert.Equal(t, string(funnel.StateDeployed), got.State)
		assert.True(t, got.IsDeployed)

		w = invoke(f.funnels.UnassignResource, testMerchant, call{
			method: http.MethodDelete,
			path:   "/funnels/" + fn.ID + "/resources/" + paid1.ID,
			params: map[string]string{"id": fn.ID, "resource_id": paid1.ID},
		})
		assert.Equal(t, http.StatusLocked, w.Code)
		assert.Equal(t, "locked", errorType(t, w))
	})

	t.Run("failed offline keeps the funnel live", func(t *testing.T) {
		f.deployer.err = errors.New("cdn unavailable")
		defer func() { f.deployer.err = nil }()

		w := f.funnelAction(f.funnels.TakeFunnelOffline, fn.ID)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "persistence_failure", errorType(t, w))
		assert.Equal(t, string(funnel.StateDeployed), readiness().State)
	})

	t.Run("take offline", func(t *testing.T) {
		w := f.funnelAction(f.funnels.TakeFunnelOffline, fn.ID)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, string(funnel.StateGenerated), readiness().State)
	})

	t.Run("list", func(t *testing.T) {
		w := invoke(f.funnels.ListFunnels, testMerchant, call{method: http.MethodGet, path: "/funnels"})
		require.Equal(t, http.StatusOK, w.Code)
		var list testutil.ListData[funneldto.FunnelResponse]
		_, err := testutil.DecodeData(w, &list)
		require.NoError(t, err)
		require.Equal(t, 1, list.Total)
		assert.ElementsMatch(t, []string{paid1.ID, paid2.ID, free1.ID}, list.Items[0].ResourceIDs)
	})
}

func TestFunnelHandler_GetAndMarkDeficient(t *testing.T) {
	f := newFixture(t)
	paid := f.createResource(t, "Course", "PAID")
	fn := f.createFunnel(t, "Launch")

	t.Run("unknown funnel", func(t *testing.T) {
		w := invoke(f.funnels.GetFunnel, testMerchant, call{
			method: http.MethodGet,
			path:   "/funnels/fnl_missing",
			params: map[string]string{"id": "fnl_missing"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w := invoke(f.funnels.GetFunnel, testMerchant, call{
			method: http.MethodGet,
			path:   "/funnels/" + fn.ID,
			params: map[string]string{"id": fn.ID},
		})
		require.Equal(t, http.StatusOK, w.Code)
		var got funneldto.FunnelResponse
		_, err := testutil.DecodeData(w, &got)
		require.NoError(t, err)
		assert.Equal(t, "Launch", got.Name)
		assert.Empty(t, got.ResourceIDs)
	})

	t.Run("mark deficient", func(t *testing.T) {
		w := invoke(f.funnels.MarkDeficient, testMerchant, call{
			method: http.MethodPost,
			path:   "/funnels/" + fn.ID + "/deficient",
			body:   map[string][]string{"resource_ids": {paid.ID}},
			params: map[string]string{"id": fn.ID},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var r funneldto.ReadinessResponse
		_, err := testutil.DecodeData(w, &r)
		require.NoError(t, err)
		assert.Equal(t, []string{paid.ID}, r.Highlighted)
		assert.NotEmpty(t, r.Deficiencies)
	})

	t.Run("mark deficient needs ids", func(t *testing.T) {
		w := invoke(f.funnels.MarkDeficient, testMerchant, call{
			method: http.MethodPost,
			path:   "/funnels/" + fn.ID + "/deficient",
			body:   map[string][]string{"resource_ids": {}},
			params: map[string]string{"id": fn.ID},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mark deficient rejects malformed ids", func(t *testing.T) {
		for _, rid := range []string{"tmp_abc", "fnl_abc"} {
			w := invoke(f.funnels.MarkDeficient, testMerchant, call{
				method: http.MethodPost,
				path:   "/funnels/" + fn.ID + "/deficient",
				body:   map[string][]string{"resource_ids": {rid}},
				params: map[string]string{"id": fn.ID},
			})
			assert.Equal(t, http.StatusBadRequest, w.Code, rid)
		}
	})
}

func TestFeedbackHandler_ListActive(t *testing.T) {
	f := newFixture(t)
	f.createResource(t, "Alpha", "PAID")
	w := invoke(f.resources.CreateResource, testMerchant, call{
		method: http.MethodPost,
		path:   "/resources",
		body:   map[string]string{"name": "alpha", "origin_kind": "OWNED", "value_category": "PAID"},
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = invoke(f.feedback.ListActive, testMerchant, call{method: http.MethodGet, path: "/feedback"})
	require.Equal(t, http.StatusOK, w.Code)

	var list testutil.ListData[feedback.Advisory]
	_, err := testutil.DecodeData(w, &list)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.True(t, list.Items[0].Success)
	assert.Equal(t, events.OutcomeCreated, list.Items[0].Kind)
	assert.False(t, list.Items[1].Success)
	assert.Equal(t, "name_conflict", list.Items[1].ErrorKind)

	w = invoke(f.feedback.ListActive, "m_other", call{method: http.MethodGet, path: "/feedback"})
	_, err = testutil.DecodeData(w, &list)
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}
