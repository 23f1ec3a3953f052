package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/storefront/internal/shared/errors"
)

type sample struct {
	Name string `json:"name" validate:"required,max=5"`
	Kind string `json:"kind" validate:"omitempty,oneof=A B"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Name: "ok"}))

	err := ValidateStruct(sample{Kind: "C"})
	require.Error(t, err)
	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "name is required; kind must be one of [A B]", appErr.Details)

	err = ValidateStruct(sample{Name: "toolong"})
	require.Error(t, err)
	assert.Equal(t, "name must be at most 5 characters long", errors.GetAppError(err).Details)
}
