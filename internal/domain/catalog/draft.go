package catalog

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/orris-inc/storefront/internal/domain/shared"
)

const (
	MaxNameLength        = 100
	MaxPromoCodeLength   = 50
	MaxDescriptionLength = 2000
)

// Draft carries the merchant-editable fields of a resource.
type Draft struct {
	Name          string        `json:"name" yaml:"name" validate:"required,max=100"`
	Link          string        `json:"link" yaml:"link" validate:"required_if=OriginKind AFFILIATE,omitempty,http_url"`
	OriginKind    OriginKind    `json:"origin_kind" yaml:"origin_kind" validate:"required,oneof=AFFILIATE OWNED"`
	ValueCategory ValueCategory `json:"value_category" yaml:"value_category" validate:"required,oneof=PAID FREE"`
	PromoCode     string        `json:"promo_code" yaml:"promo_code" validate:"max=50"`
	Description   string        `json:"description" yaml:"description" validate:"max=2000"`
}

// Patch holds the fields to change. Nil means keep.
type Patch struct {
	Name          *string
	Link          *string
	OriginKind    *OriginKind
	ValueCategory *ValueCategory
	PromoCode     *string
	Description   *string
}

// ApplyTo overlays p onto d.
func (p Patch) ApplyTo(d Draft) Draft {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Link != nil {
		d.Link = *p.Link
	}
	if p.OriginKind != nil {
		d.OriginKind = *p.OriginKind
	}
	if p.ValueCategory != nil {
		d.ValueCategory = *p.ValueCategory
	}
	if p.PromoCode != nil {
		d.PromoCode = *p.PromoCode
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	return d
}

// RenamesTo reports whether p changes the name and, if so, to what.
func (p Patch) RenamesTo() (string, bool) {
	if p.Name == nil {
		return "", false
	}
	return *p.Name, true
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func (d Draft) normalized() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Link = strings.TrimSpace(d.Link)
	d.PromoCode = strings.TrimSpace(d.PromoCode)
	return d
}

// Validate checks field rules and returns an invalid_input OperationError
// naming every failing field.
func (d Draft) Validate() error {
	err := draftValidator.Struct(d.normalized())
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.NewError(shared.KindInvalidInput, shared.EntityResource, d.Name, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return shared.NewError(shared.KindInvalidInput, shared.EntityResource, strings.TrimSpace(d.Name), nil).
		WithDetail(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_if":
		return fe.Field() + " is required for affiliate resources"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "http_url":
		return fe.Field() + " must be an http(s) URL"
	default:
		return fe.Field() + " is invalid"
	}
}
