// Package catalog provides the Resource aggregate: a product a merchant sells
// or gives away through funnels.
package catalog

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// OriginKind says where a resource comes from.
type OriginKind string

const (
	OriginAffiliate OriginKind = "AFFILIATE"
	OriginOwned     OriginKind = "OWNED"
)

func (k OriginKind) IsValid() bool {
	return k == OriginAffiliate || k == OriginOwned
}

func (k OriginKind) String() string {
	return string(k)
}

// ValueCategory decides which funnel capacity bucket a resource occupies.
type ValueCategory string

const (
	CategoryPaid ValueCategory = "PAID"
	CategoryFree ValueCategory = "FREE"
)

func (c ValueCategory) IsValid() bool {
	return c == CategoryPaid || c == CategoryFree
}

func (c ValueCategory) String() string {
	return string(c)
}

// Resource is an immutable snapshot. Every change produces a new value, so
// snapshots handed to readers never move under them.
type Resource struct {
	id            string
	merchantID    string
	name          string
	link          string
	originKind    OriginKind
	valueCategory ValueCategory
	promoCode     string
	description   string
	createdAt     time.Time
	updatedAt     time.Time
	version       int
}

// NewResource builds a resource from a validated draft.
func NewResource(id, merchantID string, d Draft, now time.Time) (*Resource, error) {
	d = d.normalized()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Resource{
		id:            id,
		merchantID:    merchantID,
		name:          d.Name,
		link:          d.Link,
		originKind:    d.OriginKind,
		valueCategory: d.ValueCategory,
		promoCode:     d.PromoCode,
		description:   d.Description,
		createdAt:     now,
		updatedAt:     now,
		version:       1,
	}, nil
}

// ReconstructResource rebuilds a resource from persistence without validation.
func ReconstructResource(
	id, merchantID, name, link string,
	originKind OriginKind,
	valueCategory ValueCategory,
	promoCode, description string,
	createdAt, updatedAt time.Time,
	version int,
) *Resource {
	return &Resource{
		id:            id,
		merchantID:    merchantID,
		name:          name,
		link:          link,
		originKind:    originKind,
		valueCategory: valueCategory,
		promoCode:     promoCode,
		description:   description,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		version:       version,
	}
}

func (r *Resource) ID() string                   { return r.id }
func (r *Resource) MerchantID() string           { return r.merchantID }
func (r *Resource) Name() string                 { return r.name }
func (r *Resource) Link() string                 { return r.link }
func (r *Resource) OriginKind() OriginKind       { return r.originKind }
func (r *Resource) ValueCategory() ValueCategory { return r.valueCategory }
func (r *Resource) PromoCode() string            { return r.promoCode }
func (r *Resource) Description() string          { return r.description }
func (r *Resource) CreatedAt() time.Time         { return r.createdAt }
func (r *Resource) UpdatedAt() time.Time         { return r.updatedAt }
func (r *Resource) Version() int                 { return r.version }

// NormalizedName is the key used for uniqueness checks.
func (r *Resource) NormalizedName() string {
	return NormalizeName(r.name)
}

// Draft returns the editable fields of r.
func (r *Resource) Draft() Draft {
	return Draft{
		Name:          r.name,
		Link:          r.link,
		OriginKind:    r.originKind,
		ValueCategory: r.valueCategory,
		PromoCode:     r.promoCode,
		Description:   r.description,
	}
}

// Apply returns a copy of r with p applied. r itself is unchanged.
func (r *Resource) Apply(p Patch, now time.Time) (*Resource, error) {
	d := p.ApplyTo(r.Draft()).normalized()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	next := *r
	next.name = d.Name
	next.link = d.Link
	next.originKind = d.OriginKind
	next.valueCategory = d.ValueCategory
	next.promoCode = d.PromoCode
	next.description = d.Description
	next.updatedAt = now
	return &next, nil
}

// NormalizeName trims, collapses internal whitespace and case-folds s, so
// "Pro  Duct" and "pro duct" compare equal.
func NormalizeName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
