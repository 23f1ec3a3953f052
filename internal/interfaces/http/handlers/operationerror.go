package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/shared/errors"
)

var kindStatus = map[shared.Kind]int{
	shared.KindNameConflict:       http.StatusConflict,
	shared.KindLimitReached:       http.StatusUnprocessableEntity,
	shared.KindAlreadyAssigned:    http.StatusConflict,
	shared.KindNotAssigned:        http.StatusConflict,
	shared.KindStillAssigned:      http.StatusConflict,
	shared.KindNotFound:           http.StatusNotFound,
	shared.KindLocked:             http.StatusLocked,
	shared.KindBusy:               http.StatusTooManyRequests,
	shared.KindInsufficient:       http.StatusUnprocessableEntity,
	shared.KindInvalidState:       http.StatusConflict,
	shared.KindPersistenceFailure: http.StatusBadGateway,
	shared.KindGenerationFailed:   http.StatusBadGateway,
	shared.KindInvalidInput:       http.StatusBadRequest,
}

// translateError turns an application failure into the AppError rendered to
// clients. The error type is the failure kind, except invalid input which
// reports as a validation error.
func translateError(err error) error {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	opErr, ok := shared.AsOperationError(err)
	if !ok {
		if stderrors.Is(err, shared.ErrNotFound) {
			return errors.NewNotFoundError("not found")
		}
		return err
	}

	status, ok := kindStatus[opErr.Kind]
	if !ok {
		return errors.NewInternalError("Internal server error occurred")
	}
	errType := errors.ErrorType(opErr.Kind)
	if opErr.Kind == shared.KindInvalidInput {
		errType = errors.ErrorTypeValidation
	}
	return &errors.AppError{
		Type:    errType,
		Message: opErr.Message(),
		Code:    status,
		Details: opErr.Detail,
	}
}
