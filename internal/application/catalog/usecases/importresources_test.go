package usecases

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/application/catalog/services"
	"github.com/orris-inc/storefront/internal/application/testutil"
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

const importYAML = `
resources:
  - name: Launch Checklist
    origin_kind: OWNED
    value_category: FREE
  - name: Partner Course
    origin_kind: AFFILIATE
    value_category: PAID
    link: https://partner.example.com/course?ref=42
    promo_code: SPRING
  - name: launch  checklist
    origin_kind: OWNED
    value_category: FREE
  - name: Webinar Replay
    origin_kind: OWNED
    value_category: FREE
`

func newImportStore(limit int) *services.Store {
	return services.NewStore("m1", &sync.Mutex{}, testutil.NewMockCatalogRepository(),
		testutil.StaticRefs{}, nil, nil, services.Limits{MaxResources: limit}, logger.NewNop())
}

func TestParseImportFile(t *testing.T) {
	f, err := ParseImportFile(strings.NewReader(importYAML))
	require.NoError(t, err)
	require.Len(t, f.Resources, 4)
	assert.Equal(t, catalog.OriginAffiliate, f.Resources[1].OriginKind)
	assert.Equal(t, "SPRING", f.Resources[1].PromoCode)
}

func TestParseImportFile_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseImportFile(strings.NewReader("resources:\n  - name: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestParseImportFile_Empty(t *testing.T) {
	f, err := ParseImportFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Resources)
}

func TestImportResources_CollectsFailures(t *testing.T) {
	f, err := ParseImportFile(strings.NewReader(importYAML))
	require.NoError(t, err)
	uc := NewImportResourcesUseCase(newImportStore(10), logger.NewNop())

	res, err := uc.Execute(context.Background(), ImportResourcesRequest{Drafts: f.Resources})

	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, shared.KindNameConflict, res.Failed[0].Kind)
	assert.Equal(t, "launch  checklist", res.Failed[0].Name)
}

func TestImportResources_StopsAtLimit(t *testing.T) {
	f, err := ParseImportFile(strings.NewReader(importYAML))
	require.NoError(t, err)
	uc := NewImportResourcesUseCase(newImportStore(1), logger.NewNop())

	res, err := uc.Execute(context.Background(), ImportResourcesRequest{Drafts: f.Resources, StopOnLimit: true})

	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, shared.KindLimitReached, res.Failed[0].Kind)
	assert.Equal(t, 2, res.Skipped)
}
