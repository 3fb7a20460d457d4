package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func expiringAccount(t *testing.T, env *testEnv, expiry time.Time) domain.ConnectedAccount {
	t.Helper()
	acc := domain.ConnectedAccount{
		UserRef:        "alice",
		Platform:       domain.PlatformYouTube,
		PlatformUserID: "UC1",
		AccessToken:    "old",
		RefreshToken:   "refresh",
		TokenExpiry:    &expiry,
	}
	require.NoError(t, env.accounts.Connect(context.Background(), &acc))
	return acc
}

func TestEnsure_FreshTokenUntouched(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(time.Hour))
	refresher := &mockRefresher{}
	m := NewTokenManager(env.accounts, 10*time.Minute)
	m.RegisterRefresher(domain.PlatformYouTube, refresher)

	got, err := m.Ensure(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "old", got.AccessToken)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestEnsure_RefreshesInsideWindowAndPersists(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(2*time.Minute))
	newExpiry := time.Now().Add(time.Hour).UTC()
	refresher := &mockRefresher{}
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(domain.TokenSet{AccessToken: "new", Expiry: &newExpiry}, nil).Once()
	m := NewTokenManager(env.accounts, 10*time.Minute)
	m.RegisterRefresher(domain.PlatformYouTube, refresher)

	got, err := m.Ensure(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)

	stored, err := env.accounts.Get(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.AccessToken)
	refresher.AssertExpectations(t)
}

func TestEnsure_ConcurrentRefreshesCollapse(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(time.Minute))
	newExpiry := time.Now().Add(time.Hour).UTC()
	refresher := &mockRefresher{}
	refresher.On("Refresh", mock.Anything, mock.Anything).
		After(50*time.Millisecond).
		Return(domain.TokenSet{AccessToken: "new", Expiry: &newExpiry}, nil)
	m := NewTokenManager(env.accounts, 10*time.Minute)
	m.RegisterRefresher(domain.PlatformYouTube, refresher)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Ensure(context.Background(), acc)
			assert.NoError(t, err)
			assert.Equal(t, "new", got.AccessToken)
		}()
	}
	wg.Wait()

	assert.Less(t, len(refresher.Calls), 5)
}

func TestEnsure_RefreshFailureKeepsValidToken(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(2*time.Minute))
	refresher := &mockRefresher{}
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(domain.TokenSet{}, errors.New("invalid_grant"))
	m := NewTokenManager(env.accounts, 10*time.Minute)
	m.RegisterRefresher(domain.PlatformYouTube, refresher)

	got, err := m.Ensure(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "old", got.AccessToken)
}

func TestEnsure_ExpiredTokenWithFailedRefresh(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(-time.Minute))
	refresher := &mockRefresher{}
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(domain.TokenSet{}, errors.New("invalid_grant"))
	m := NewTokenManager(env.accounts, 10*time.Minute)
	m.RegisterRefresher(domain.PlatformYouTube, refresher)

	_, err := m.Ensure(context.Background(), acc)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindTokenExpired, domain.KindOf(err))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestEnsure_ExpiredTokenWithoutRefresher(t *testing.T) {
	env := newTestEnv(t)
	acc := expiringAccount(t, env, time.Now().Add(-time.Minute))
	m := NewTokenManager(env.accounts, 10*time.Minute)

	_, err := m.Ensure(context.Background(), acc)
	assert.Equal(t, domain.ErrKindTokenExpired, domain.KindOf(err))
}
