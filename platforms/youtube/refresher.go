package youtube

import (
	"context"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"golang.org/x/oauth2"
)

// Refresh trades the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, acc domain.ConnectedAccount) (domain.TokenSet, error) {
	if acc.RefreshToken == "" {
		return domain.TokenSet{}, domain.NewTokenExpiredError("no refresh token stored")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	expired := &oauth2.Token{
		RefreshToken: acc.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	tok, err := c.oauth.TokenSource(ctx, expired).Token()
	if err != nil {
		return domain.TokenSet{}, mapError(ctx, err)
	}

	ts := domain.TokenSet{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		ts.Expiry = &exp
	}
	return ts, nil
}
