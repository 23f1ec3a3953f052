package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/domain/shared"
)

func validDraft() Draft {
	return Draft{
		Name:          "  Launch Checklist ",
		OriginKind:    OriginOwned,
		ValueCategory: CategoryFree,
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Pro  Duct", "pro duct", true},
		{"  pro duct  ", "PRO DUCT", true},
		{"pro\tduct", "pro duct", true},
		{"Éclair Guide", "éclair  guide", true},
		{"pro duct", "product", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.same, NormalizeName(tt.a) == NormalizeName(tt.b))
		})
	}
}

func TestNewResource_TrimsName(t *testing.T) {
	now := time.Now()
	r, err := NewResource("tmp_1", "m1", validDraft(), now)
	require.NoError(t, err)

	assert.Equal(t, "Launch Checklist", r.Name())
	assert.Equal(t, "launch checklist", r.NormalizedName())
	assert.Equal(t, 1, r.Version())
	assert.Equal(t, now, r.CreatedAt())
}

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		wantErr string
	}{
		{"valid owned without link", func(d *Draft) {}, ""},
		{"affiliate requires link", func(d *Draft) { d.OriginKind = OriginAffiliate }, "link is required for affiliate resources"},
		{"affiliate with link", func(d *Draft) {
			d.OriginKind = OriginAffiliate
			d.Link = "https://partner.example.com/ref/42"
		}, ""},
		{"link must be http", func(d *Draft) { d.Link = "ftp://files.example.com/a.zip" }, "link must be an http(s) URL"},
		{"blank name", func(d *Draft) { d.Name = "   " }, "name is required"},
		{"name too long", func(d *Draft) { d.Name = strings.Repeat("x", 101) }, "name must be at most 100 characters"},
		{"unknown category", func(d *Draft) { d.ValueCategory = "GIFT" }, "value_category must be one of PAID FREE"},
		{"promo too long", func(d *Draft) { d.PromoCode = strings.Repeat("P", 51) }, "promo_code must be at most 50 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			opErr, ok := shared.AsOperationError(err)
			require.True(t, ok)
			assert.Contains(t, opErr.Detail, tt.wantErr)
		})
	}
}

func TestResource_ApplyLeavesOriginalUntouched(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	r, err := NewResource("res_1", "m1", validDraft(), created)
	require.NoError(t, err)

	name := "Launch Checklist v2"
	paid := CategoryPaid
	next, err := r.Apply(Patch{Name: &name, ValueCategory: &paid}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Launch Checklist", r.Name())
	assert.Equal(t, CategoryFree, r.ValueCategory())
	assert.Equal(t, name, next.Name())
	assert.Equal(t, CategoryPaid, next.ValueCategory())
	assert.Equal(t, r.ID(), next.ID())
	assert.True(t, next.UpdatedAt().After(created))
}

func TestResource_ApplyRejectsInvalidPatch(t *testing.T) {
	r, err := NewResource("res_1", "m1", validDraft(), time.Now())
	require.NoError(t, err)

	affiliate := OriginAffiliate
	_, err = r.Apply(Patch{OriginKind: &affiliate}, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
