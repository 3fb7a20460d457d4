package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/core/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testStores struct {
	db        *gorm.DB
	queue     *QueueGormRepository
	accounts  *AccountGormRepository
	autoreply *AutoReplyGormRepository
}

func setupTestDB(t *testing.T) testStores {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := testStores{
		db:        db,
		queue:     NewQueueGormRepository(db),
		accounts:  NewAccountGormRepository(db, nil),
		autoreply: NewAutoReplyGormRepository(db),
	}
	ctx := context.Background()
	require.NoError(t, s.queue.Init(ctx))
	require.NoError(t, s.accounts.Init(ctx))
	require.NoError(t, s.autoreply.Init(ctx))
	return s
}

func connectAccount(t *testing.T, s testStores, userRef string, platform domain.Platform) domain.ConnectedAccount {
	t.Helper()
	acc := domain.ConnectedAccount{
		UserRef:        userRef,
		Platform:       platform,
		PlatformUserID: "pu-" + userRef + "-" + string(platform),
		AccessToken:    "token-" + userRef,
	}
	require.NoError(t, s.accounts.Connect(context.Background(), &acc))
	return acc
}

func pendingPost(accountRef string, dueAt time.Time) *domain.ScheduledAction {
	return &domain.ScheduledAction{
		AccountRef: accountRef,
		Kind:       domain.KindPublishPost,
		Payload: domain.ActionPayload{
			Caption:   "hello",
			MediaURL:  "https://cdn.example.com/p.jpg",
			MediaType: domain.MediaImage,
		},
		DueAt: dueAt,
	}
}
