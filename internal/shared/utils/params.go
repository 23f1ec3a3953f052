package utils

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/id"
)

// ParseSIDParam reads a prefixed id from the route. entityName only feeds
// the error message.
func ParseSIDParam(c *gin.Context, paramName, prefix, entityName string) (string, error) {
	return CheckSID(strings.TrimSpace(c.Param(paramName)), prefix, entityName)
}

// CheckSID validates an id taken from a request body or query. Temporary ids
// are rejected with their own message since they never name a stored entity.
func CheckSID(sid, prefix, entityName string) (string, error) {
	switch {
	case sid == "":
		return "", errors.NewValidationError(entityName + " ID is required")
	case id.IsTemp(sid):
		return "", errors.NewValidationError(entityName+" has not been saved yet", sid)
	}
	if err := id.ValidatePrefix(sid, prefix); err != nil {
		return "", errors.NewValidationError(
			fmt.Sprintf("invalid %s ID format, expected %s_xxxxx", entityName, prefix), sid)
	}
	return sid, nil
}
