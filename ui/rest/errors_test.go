package rest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AzielCF/az-social/automation/domain"
	pkgError "github.com/AzielCF/az-social/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	assert.Nil(t, httpError(nil))

	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrActionNotFound, 404},
		{fmt.Errorf("lookup: %w", domain.ErrAccountNotFound), 404},
		{domain.ErrNotCancellable, 409},
		{domain.ErrDuplicateSource, 409},
		{domain.NewValidationError("bad media"), 400},
		{pkgError.ValidationError("caption too long"), 400},
		{errors.New("boom"), 500},
		{domain.NewPlatformAPIError("rate limited"), 500},
	}
	for _, tc := range cases {
		mapped := httpError(tc.err)
		var generic pkgError.GenericError
		if assert.ErrorAs(t, mapped, &generic, tc.err.Error()) {
			assert.Equal(t, tc.status, generic.StatusCode(), tc.err.Error())
		}
	}
}
