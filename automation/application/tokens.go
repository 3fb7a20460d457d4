package application

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TokenManager refreshes access tokens that are close to expiry before a
// platform call. Concurrent refreshes of the same account collapse into one.
type TokenManager struct {
	accounts domain.AccountStore
	window   time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	refreshers map[domain.Platform]domain.TokenRefresher
	group      singleflight.Group
}

func NewTokenManager(accounts domain.AccountStore, window time.Duration) *TokenManager {
	return &TokenManager{
		accounts:   accounts,
		window:     window,
		now:        time.Now,
		refreshers: make(map[domain.Platform]domain.TokenRefresher),
	}
}

func (m *TokenManager) RegisterRefresher(platform domain.Platform, r domain.TokenRefresher) {
	m.mu.Lock()
	m.refreshers[platform] = r
	m.mu.Unlock()
}

// Ensure returns the account with a usable access token. A token inside the
// refresh window is refreshed and persisted. When refresh fails the current
// token is kept if it is still valid; an already expired token yields a
// token-expired DispatchError.
func (m *TokenManager) Ensure(ctx context.Context, acc domain.ConnectedAccount) (domain.ConnectedAccount, error) {
	now := m.now()
	if !acc.TokenExpiresWithin(now, m.window) {
		return acc, nil
	}

	m.mu.RLock()
	refresher := m.refreshers[acc.Platform]
	m.mu.RUnlock()

	if refresher == nil {
		if acc.TokenExpired(now) {
			return acc, domain.NewTokenExpiredError("no refresher for " + string(acc.Platform))
		}
		return acc, nil
	}

	v, err, _ := m.group.Do(acc.ID, func() (any, error) {
		tokens, err := refresher.Refresh(ctx, acc)
		if err != nil {
			return nil, err
		}
		if err := m.accounts.UpdateToken(ctx, acc.ID, tokens); err != nil {
			logrus.WithError(err).Warnf("[TOKENS] Failed to persist refreshed token for %s", acc.ID)
		}
		return tokens, nil
	})
	if err != nil {
		if acc.TokenExpired(now) {
			return acc, domain.Wrapf(domain.NewTokenExpiredError(err.Error()), "refresh failed")
		}
		logrus.WithError(err).Warnf("[TOKENS] Refresh failed for %s, token still valid until %s", acc.ID, acc.TokenExpiry.Format(time.RFC3339))
		return acc, nil
	}

	tokens := v.(domain.TokenSet)
	acc.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		acc.RefreshToken = tokens.RefreshToken
	}
	acc.TokenExpiry = tokens.Expiry
	logrus.Infof("[TOKENS] Refreshed %s token for account %s", acc.Platform, acc.ID)
	return acc, nil
}
