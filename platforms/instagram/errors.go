package instagram

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AzielCF/az-social/automation/domain"
)

// Graph API error codes, see
// https://developers.facebook.com/docs/graph-api/guides/error-handling
const (
	codeAPITooManyCalls  = 4
	codeUserTooManyCalls = 17
	codePageRateLimit    = 32
	codeCustomRateLimit  = 613
	codeAccessToken      = 190
)

type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// parseGraphError maps an error response onto the dispatch taxonomy.
func parseGraphError(status int, body []byte) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Message == "" {
		if status == http.StatusUnauthorized {
			return domain.NewTokenExpiredError(http.StatusText(status))
		}
		return domain.NewPlatformAPIError(fmt.Sprintf("http %d", status))
	}

	switch ge.Error.Code {
	case codeAccessToken:
		return domain.NewTokenExpiredError(ge.Error.Message)
	case codeAPITooManyCalls, codeUserTooManyCalls, codePageRateLimit, codeCustomRateLimit:
		return domain.NewPlatformAPIError("rate limited: " + ge.Error.Message)
	}
	return domain.NewPlatformAPIError(fmt.Sprintf("%s (code %d)", ge.Error.Message, ge.Error.Code))
}
