package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_ReconnectUpdatesInPlace(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	first := connectAccount(t, s, "alice", domain.PlatformInstagram)
	require.NoError(t, s.accounts.Disconnect(ctx, first.ID))

	again := domain.ConnectedAccount{
		UserRef:        "alice",
		Platform:       domain.PlatformInstagram,
		PlatformUserID: "ig-new",
		AccessToken:    "fresh",
	}
	require.NoError(t, s.accounts.Connect(ctx, &again))
	assert.Equal(t, first.ID, again.ID)

	got, err := s.accounts.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConnected)
	assert.Equal(t, "fresh", got.AccessToken)
	assert.Equal(t, "ig-new", got.PlatformUserID)

	var count int64
	require.NoError(t, s.db.Model(&connectedAccountModel{}).Where("user_ref = ?", "alice").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAccount_DisconnectClearsTokens(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	acc := connectAccount(t, s, "bob", domain.PlatformYouTube)
	require.NoError(t, s.accounts.Disconnect(ctx, acc.ID))

	got, err := s.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsConnected)
	assert.Empty(t, got.AccessToken)

	connected, err := s.accounts.ListConnected(ctx)
	require.NoError(t, err)
	assert.Empty(t, connected)

	assert.ErrorIs(t, s.accounts.Disconnect(ctx, "missing"), domain.ErrAccountNotFound)
}

func TestAccount_GetByPlatformUser(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	acc := connectAccount(t, s, "carol", domain.PlatformInstagram)

	got, err := s.accounts.GetByPlatformUser(ctx, domain.PlatformInstagram, acc.PlatformUserID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	_, err = s.accounts.GetByPlatformUser(ctx, domain.PlatformYouTube, acc.PlatformUserID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccount_UpdateTokenKeepsRefreshWhenEmpty(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	acc := domain.ConnectedAccount{
		UserRef:        "dan",
		Platform:       domain.PlatformYouTube,
		PlatformUserID: "UC123",
		AccessToken:    "a1",
		RefreshToken:   "r1",
	}
	require.NoError(t, s.accounts.Connect(ctx, &acc))

	expiry := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.accounts.UpdateToken(ctx, acc.ID, domain.TokenSet{AccessToken: "a2", Expiry: &expiry}))

	got, err := s.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
	require.NotNil(t, got.TokenExpiry)
	assert.WithinDuration(t, expiry, *got.TokenExpiry, time.Second)

	assert.ErrorIs(t, s.accounts.UpdateToken(ctx, "missing", domain.TokenSet{AccessToken: "x"}), domain.ErrAccountNotFound)
}

func TestAccount_TokensSealedAtRest(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	cipher, err := crypto.NewTokenCipher("test-secret")
	require.NoError(t, err)
	repo := NewAccountGormRepository(s.db, cipher)

	acc := domain.ConnectedAccount{
		UserRef:        "erin",
		Platform:       domain.PlatformInstagram,
		PlatformUserID: "ig-erin",
		AccessToken:    "plain-access",
	}
	require.NoError(t, repo.Connect(ctx, &acc))

	var raw connectedAccountModel
	require.NoError(t, s.db.First(&raw, "id = ?", acc.ID).Error)
	assert.True(t, strings.HasPrefix(raw.AccessToken, "enc:"))
	assert.NotContains(t, raw.AccessToken, "plain-access")

	got, err := repo.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "plain-access", got.AccessToken)
}
