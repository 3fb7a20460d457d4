package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueAssignsDefaults(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	action := pendingPost("acc-1", time.Now().Add(time.Hour))
	require.NoError(t, s.queue.Enqueue(ctx, action))

	assert.NotEmpty(t, action.ID)
	assert.Equal(t, domain.StatusPending, action.Status)

	got, err := s.queue.Get(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.jpg", got.Payload.MediaURL)
	assert.Equal(t, domain.MediaImage, got.Payload.MediaType)
	assert.WithinDuration(t, action.DueAt, got.DueAt, time.Millisecond)
}

func TestQueue_FindDueOldestFirstWithLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	late := pendingPost("acc-1", now.Add(-1*time.Minute))
	oldest := pendingPost("acc-1", now.Add(-10*time.Minute))
	middle := pendingPost("acc-1", now.Add(-5*time.Minute))
	future := pendingPost("acc-1", now.Add(time.Minute))
	for _, a := range []*domain.ScheduledAction{late, oldest, middle, future} {
		require.NoError(t, s.queue.Enqueue(ctx, a))
	}

	due, err := s.queue.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, oldest.ID, due[0].ID)
	assert.Equal(t, middle.ID, due[1].ID)
	assert.Equal(t, late.ID, due[2].ID)

	limited, err := s.queue.FindDue(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, oldest.ID, limited[0].ID)
}

func TestQueue_FindDueSkipsNonPending(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := pendingPost("acc-1", now.Add(-time.Minute))
	require.NoError(t, s.queue.Enqueue(ctx, a))
	ok, err := s.queue.Claim(ctx, a.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	due, err := s.queue.FindDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestQueue_ClaimIsExclusive(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := pendingPost("acc-1", now.Add(-time.Second))
	require.NoError(t, s.queue.Enqueue(ctx, a))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.queue.Claim(ctx, a.ID, now)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)

	got, err := s.queue.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInFlight, got.Status)
	require.NotNil(t, got.ClaimedAt)
}

func TestQueue_UpdateStatusRecordsOutcome(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ok1 := pendingPost("acc-1", now)
	ko := pendingPost("acc-1", now)
	require.NoError(t, s.queue.Enqueue(ctx, ok1))
	require.NoError(t, s.queue.Enqueue(ctx, ko))

	_, err := s.queue.Claim(ctx, ok1.ID, now)
	require.NoError(t, err)
	_, err = s.queue.Claim(ctx, ko.ID, now)
	require.NoError(t, err)

	require.NoError(t, s.queue.UpdateStatus(ctx, ok1.ID, domain.SucceededOutcome(domain.KindPublishPost, "M123")))
	require.NoError(t, s.queue.UpdateStatus(ctx, ko.ID, domain.FailedOutcome(domain.NewPlatformAPIError("rate limited"))))

	published, err := s.queue.Get(ctx, ok1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, published.Status)
	assert.Equal(t, "M123", published.ResultRef)
	assert.Empty(t, published.ErrorDetail)

	failed, err := s.queue.Get(ctx, ko.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorDetail, "rate limited")
	assert.Equal(t, domain.ErrKindPlatformAPI, failed.ErrorKind)
	assert.Empty(t, failed.ResultRef)
}

func TestQueue_UpdateStatusRequiresInFlight(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	a := pendingPost("acc-1", time.Now())
	require.NoError(t, s.queue.Enqueue(ctx, a))

	err := s.queue.UpdateStatus(ctx, a.ID, domain.SucceededOutcome(domain.KindPublishPost, "M1"))
	assert.ErrorIs(t, err, domain.ErrNotInFlight)

	err = s.queue.UpdateStatus(ctx, "missing", domain.SucceededOutcome(domain.KindPublishPost, "M1"))
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestQueue_CancelOnlyFromPending(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pending := pendingPost("acc-1", now.Add(time.Hour))
	published := pendingPost("acc-1", now)
	require.NoError(t, s.queue.Enqueue(ctx, pending))
	require.NoError(t, s.queue.Enqueue(ctx, published))

	_, err := s.queue.Claim(ctx, published.ID, now)
	require.NoError(t, err)
	require.NoError(t, s.queue.UpdateStatus(ctx, published.ID, domain.SucceededOutcome(domain.KindPublishPost, "M9")))

	require.NoError(t, s.queue.Cancel(ctx, pending.ID))
	got, err := s.queue.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	err = s.queue.Cancel(ctx, published.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	got, err = s.queue.Get(ctx, published.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Equal(t, "M9", got.ResultRef)

	assert.ErrorIs(t, s.queue.Cancel(ctx, "missing"), domain.ErrActionNotFound)
}

func TestQueue_SweepStaleFailsOldClaims(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := pendingPost("acc-1", now.Add(-time.Hour))
	fresh := pendingPost("acc-1", now.Add(-time.Hour))
	require.NoError(t, s.queue.Enqueue(ctx, stale))
	require.NoError(t, s.queue.Enqueue(ctx, fresh))

	_, err := s.queue.Claim(ctx, stale.ID, now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = s.queue.Claim(ctx, fresh.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	n, err := s.queue.SweepStale(ctx, now.Add(-10*time.Minute), "dispatch interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.queue.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "dispatch interrupted", got.ErrorDetail)
	assert.Equal(t, domain.ErrKindTimeout, got.ErrorKind)

	got, err = s.queue.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInFlight, got.Status)
}

func TestQueue_ResetDueOnlyPending(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := pendingPost("acc-1", now.Add(24*time.Hour))
	require.NoError(t, s.queue.Enqueue(ctx, a))

	require.NoError(t, s.queue.ResetDue(ctx, a.ID, now))
	due, err := s.queue.FindDue(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, s.queue.Cancel(ctx, a.ID))
	assert.ErrorIs(t, s.queue.ResetDue(ctx, a.ID, now), domain.ErrNotPending)
}

func TestQueue_ListByUser(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	alice := connectAccount(t, s, "alice", domain.PlatformInstagram)
	aliceYT := connectAccount(t, s, "alice", domain.PlatformYouTube)
	bob := connectAccount(t, s, "bob", domain.PlatformInstagram)

	require.NoError(t, s.queue.Enqueue(ctx, pendingPost(alice.ID, time.Now())))
	require.NoError(t, s.queue.Enqueue(ctx, pendingPost(aliceYT.ID, time.Now())))
	require.NoError(t, s.queue.Enqueue(ctx, pendingPost(bob.ID, time.Now())))

	actions, err := s.queue.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, actions, 2)
	for _, a := range actions {
		assert.NotEqual(t, bob.ID, a.AccountRef)
	}
}

func TestQueue_CountByStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	a := pendingPost("acc-1", time.Now())
	b := pendingPost("acc-1", time.Now())
	require.NoError(t, s.queue.Enqueue(ctx, a))
	require.NoError(t, s.queue.Enqueue(ctx, b))
	require.NoError(t, s.queue.Cancel(ctx, b.ID))

	counts, err := s.queue.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusPending])
	assert.Equal(t, int64(1), counts[domain.StatusCancelled])
}

func TestQueue_FindDueFailsUndecodableRowAndReturnsRest(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	broken := pendingPost("acc-1", now.Add(-10*time.Minute))
	good := pendingPost("acc-1", now.Add(-time.Minute))
	require.NoError(t, s.queue.Enqueue(ctx, broken))
	require.NoError(t, s.queue.Enqueue(ctx, good))
	require.NoError(t, s.db.Exec("UPDATE scheduled_actions SET payload = ? WHERE id = ?", "{not json", broken.ID).Error)

	due, err := s.queue.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, good.ID, due[0].ID)

	var m scheduledActionModel
	require.NoError(t, s.db.First(&m, "id = ?", broken.ID).Error)
	assert.Equal(t, string(domain.StatusFailed), m.Status)
	assert.Equal(t, string(domain.ErrKindValidation), m.ErrorKind.String)
	assert.Contains(t, m.ErrorDetail.String, "decode payload")

	due, err = s.queue.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, good.ID, due[0].ID)
}
