package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/automation/repository"
	"github.com/AzielCF/az-social/core/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	queue     *repository.QueueGormRepository
	accounts  *repository.AccountGormRepository
	autoreply *repository.AutoReplyGormRepository
	platform  *fakePlatform
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	env := &testEnv{
		db:        db,
		queue:     repository.NewQueueGormRepository(db),
		accounts:  repository.NewAccountGormRepository(db, nil),
		autoreply: repository.NewAutoReplyGormRepository(db),
		platform:  &fakePlatform{},
	}
	ctx := context.Background()
	require.NoError(t, env.queue.Init(ctx))
	require.NoError(t, env.accounts.Init(ctx))
	require.NoError(t, env.autoreply.Init(ctx))
	return env
}

func (e *testEnv) dispatcher(cfg DispatcherConfig) *Dispatcher {
	return NewDispatcher(cfg, DispatcherDeps{
		Queue:     e.queue,
		Accounts:  e.accounts,
		Logs:      e.autoreply,
		Platforms: e.platform,
		Guard:     repository.NewMemoryGuard(),
		Tokens:    NewTokenManager(e.accounts, 10*time.Minute),
	})
}

func (e *testEnv) connect(t *testing.T, userRef string) domain.ConnectedAccount {
	t.Helper()
	acc := domain.ConnectedAccount{
		UserRef:        userRef,
		Platform:       domain.PlatformInstagram,
		PlatformUserID: "ig-" + userRef,
		Username:       userRef,
		AccessToken:    "token",
	}
	require.NoError(t, e.accounts.Connect(context.Background(), &acc))
	return acc
}

func (e *testEnv) schedulePost(t *testing.T, accountRef, mediaURL string, dueAt time.Time) domain.ScheduledAction {
	t.Helper()
	a := &domain.ScheduledAction{
		AccountRef: accountRef,
		Kind:       domain.KindPublishPost,
		Payload: domain.ActionPayload{
			Caption:   "caption",
			MediaURL:  mediaURL,
			MediaType: domain.MediaImage,
		},
		DueAt: dueAt,
	}
	require.NoError(t, e.queue.Enqueue(context.Background(), a))
	return *a
}

func (e *testEnv) get(t *testing.T, id string) domain.ScheduledAction {
	t.Helper()
	a, err := e.queue.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}
