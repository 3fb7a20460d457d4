package instagram

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
)

// Refresh exchanges a long-lived Instagram token for a new one.
// Long-lived tokens are valid for 60 days and can be refreshed once they are
// at least 24 hours old.
func (c *Client) Refresh(ctx context.Context, acc domain.ConnectedAccount) (domain.TokenSet, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	endpoint := c.cfg.RefreshBaseURL + "/refresh_access_token"
	params := url.Values{"grant_type": {"ig_refresh_token"}}
	if err := c.do(ctx, http.MethodGet, endpoint, acc.AccessToken, params, nil, &out); err != nil {
		return domain.TokenSet{}, err
	}
	if out.AccessToken == "" {
		return domain.TokenSet{}, domain.NewTokenExpiredError("refresh returned no token")
	}

	ts := domain.TokenSet{AccessToken: out.AccessToken}
	if out.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
		ts.Expiry = &exp
	}
	return ts, nil
}
