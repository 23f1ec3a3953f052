package dto

import (
	"time"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/mapper"
)

// CreateResourceRequest represents a request to create a resource
type CreateResourceRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	Link          string `json:"link,omitempty" binding:"omitempty,max=2048"`
	OriginKind    string `json:"origin_kind" binding:"required,oneof=AFFILIATE OWNED"`
	ValueCategory string `json:"value_category" binding:"required,oneof=PAID FREE"`
	PromoCode     string `json:"promo_code,omitempty" binding:"max=50"`
	Description   string `json:"description,omitempty" binding:"max=2000"`
}

func (r CreateResourceRequest) ToDraft() catalog.Draft {
	return catalog.Draft{
		Name:          r.Name,
		Link:          r.Link,
		OriginKind:    catalog.OriginKind(r.OriginKind),
		ValueCategory: catalog.ValueCategory(r.ValueCategory),
		PromoCode:     r.PromoCode,
		Description:   r.Description,
	}
}

// UpdateResourceRequest carries only the fields to change.
type UpdateResourceRequest struct {
	Name          *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Link          *string `json:"link,omitempty" binding:"omitempty,max=2048"`
	OriginKind    *string `json:"origin_kind,omitempty" binding:"omitempty,oneof=AFFILIATE OWNED"`
	ValueCategory *string `json:"value_category,omitempty" binding:"omitempty,oneof=PAID FREE"`
	PromoCode     *string `json:"promo_code,omitempty" binding:"omitempty,max=50"`
	Description   *string `json:"description,omitempty" binding:"omitempty,max=2000"`
}

func (r UpdateResourceRequest) ToPatch() catalog.Patch {
	p := catalog.Patch{
		Name:        r.Name,
		Link:        r.Link,
		PromoCode:   r.PromoCode,
		Description: r.Description,
	}
	if r.OriginKind != nil {
		k := catalog.OriginKind(*r.OriginKind)
		p.OriginKind = &k
	}
	if r.ValueCategory != nil {
		c := catalog.ValueCategory(*r.ValueCategory)
		p.ValueCategory = &c
	}
	return p
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateResourceRequest) IsEmpty() bool {
	return r.Name == nil && r.Link == nil && r.OriginKind == nil &&
		r.ValueCategory == nil && r.PromoCode == nil && r.Description == nil
}

// ResourceResponse represents a resource in API responses
type ResourceResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Link            string    `json:"link,omitempty"`
	OriginKind      string    `json:"origin_kind"`
	ValueCategory   string    `json:"value_category"`
	PromoCode       string    `json:"promo_code,omitempty"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"description_html,omitempty"`
	Pending         bool      `json:"pending"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DescriptionRenderer renders markdown descriptions to sanitized HTML.
type DescriptionRenderer interface {
	Render(source string) (string, error)
}

// ToResourceResponse converts a resource. A render failure leaves
// DescriptionHTML empty; the raw description is always present.
func ToResourceResponse(r *catalog.Resource, renderer DescriptionRenderer) ResourceResponse {
	resp := ResourceResponse{
		ID:            r.ID(),
		Name:          r.Name(),
		Link:          r.Link(),
		OriginKind:    r.OriginKind().String(),
		ValueCategory: r.ValueCategory().String(),
		PromoCode:     r.PromoCode(),
		Description:   r.Description(),
		Pending:       id.IsTemp(r.ID()),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
	if renderer != nil && r.Description() != "" {
		if html, err := renderer.Render(r.Description()); err == nil {
			resp.DescriptionHTML = html
		}
	}
	return resp
}

func ToResourceResponses(rs []*catalog.Resource, renderer DescriptionRenderer) []ResourceResponse {
	return mapper.MapSlice(rs, func(r *catalog.Resource) ResourceResponse {
		return ToResourceResponse(r, renderer)
	})
}

// NameAvailabilityQuery is the query string of an is-name-available check.
type NameAvailabilityQuery struct {
	Name      string `form:"name" json:"name" validate:"required,max=100"`
	ExcludeID string `form:"exclude_id" json:"exclude_id"`
}

// NameAvailabilityResponse answers an is-name-available query.
type NameAvailabilityResponse struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}
