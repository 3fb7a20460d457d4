package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AzielCF/az-social/automation/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

// mapError maps Data API and OAuth failures onto the dispatch taxonomy.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		reason := re.ErrorCode
		if reason == "" {
			reason = "refresh rejected"
		}
		return domain.NewTokenExpiredError(reason)
	}

	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return domain.NewPlatformAPIError(err.Error())
	}
	if ge.Code == http.StatusUnauthorized {
		return domain.NewTokenExpiredError(ge.Message)
	}
	for _, item := range ge.Errors {
		if quotaReasons[item.Reason] {
			return domain.NewPlatformAPIError("rate limited: " + item.Reason)
		}
	}
	if ge.Code == http.StatusTooManyRequests {
		return domain.NewPlatformAPIError("rate limited: " + ge.Message)
	}
	return domain.NewPlatformAPIError(fmt.Sprintf("%s (http %d)", ge.Message, ge.Code))
}
