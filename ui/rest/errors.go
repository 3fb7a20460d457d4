package rest

import (
	"errors"

	"github.com/AzielCF/az-social/automation/domain"
	pkgError "github.com/AzielCF/az-social/pkg/error"
)

// httpError maps service errors onto the GenericError types rendered by the
// recovery middleware. It returns nil for a nil error.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return generic
	}

	switch {
	case errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrSettingNotFound),
		errors.Is(err, domain.ErrPersonaNotFound),
		errors.Is(err, domain.ErrLogNotFound):
		return pkgError.NotFoundError(err.Error())
	case errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrNotRetryable),
		errors.Is(err, domain.ErrNotPending),
		errors.Is(err, domain.ErrNotInFlight),
		errors.Is(err, domain.ErrDuplicateSource):
		return pkgError.ConflictError(err.Error())
	}

	var de *domain.DispatchError
	if errors.As(err, &de) && de.Kind == domain.ErrKindValidation {
		return pkgError.ValidationError(de.Error())
	}
	return pkgError.InternalServerError(err.Error())
}
