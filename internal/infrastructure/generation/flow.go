// Package generation provides the funnel.Generator implementations.
package generation

import (
	"github.com/orris-inc/storefront/internal/domain/catalog"
)

// Step kinds of a generated flow.
const (
	StepLanding  = "landing"
	StepOffer    = "offer"
	StepThankYou = "thank_you"
)

// FlowDocument is the JSON shape stored as a funnel's generated flow.
type FlowDocument struct {
	FunnelID  string `json:"funnel_id"`
	Generator string `json:"generator"`
	Steps     []Step `json:"steps"`
}

type Step struct {
	Kind  string       `json:"kind"`
	Title string       `json:"title"`
	Offer *OfferDetail `json:"offer,omitempty"`
}

type OfferDetail struct {
	ResourceID      string `json:"resource_id"`
	Name            string `json:"name"`
	ValueCategory   string `json:"value_category"`
	OriginKind      string `json:"origin_kind"`
	Link            string `json:"link,omitempty"`
	PromoCode       string `json:"promo_code,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`
}

// resourcePayload is how a resource is sent to a remote generator.
type resourcePayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Link          string `json:"link,omitempty"`
	OriginKind    string `json:"origin_kind"`
	ValueCategory string `json:"value_category"`
	PromoCode     string `json:"promo_code,omitempty"`
	Description   string `json:"description,omitempty"`
}

func toPayload(r *catalog.Resource) resourcePayload {
	return resourcePayload{
		ID:            r.ID(),
		Name:          r.Name(),
		Link:          r.Link(),
		OriginKind:    r.OriginKind().String(),
		ValueCategory: r.ValueCategory().String(),
		PromoCode:     r.PromoCode(),
		Description:   r.Description(),
	}
}
