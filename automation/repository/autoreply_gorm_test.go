package repository

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoReply_SettingRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.autoreply.GetSetting(ctx, "acc-1", domain.SurfaceComments)
	assert.ErrorIs(t, err, domain.ErrSettingNotFound)

	fixed := domain.AutoReplySetting{
		AccountRef:    "acc-1",
		Surface:       domain.SurfaceComments,
		Enabled:       true,
		Delay:         domain.FixedDelay(45),
		StaticMessage: "Thanks!",
		Mode:          domain.ModeReplyOnly,
	}
	require.NoError(t, s.autoreply.SaveSetting(ctx, fixed))

	got, err := s.autoreply.GetSetting(ctx, "acc-1", domain.SurfaceComments)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	require.True(t, got.Delay.IsFixed())
	assert.Equal(t, 45, *got.Delay.FixedSeconds)
	assert.Equal(t, "Thanks!", got.StaticMessage)

	window := fixed
	window.Delay = domain.RandomDelay(30, 180)
	window.StaticMessage = ""
	require.NoError(t, s.autoreply.SaveSetting(ctx, window))

	got, err = s.autoreply.GetSetting(ctx, "acc-1", domain.SurfaceComments)
	require.NoError(t, err)
	assert.False(t, got.Delay.IsFixed())
	assert.Equal(t, 30, got.Delay.MinSeconds)
	assert.Equal(t, 180, got.Delay.MaxSeconds)
	assert.Empty(t, got.StaticMessage)
}

func TestAutoReply_ListEnabledSettings(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.autoreply.SaveSetting(ctx, domain.AutoReplySetting{
		AccountRef: "acc-1", Surface: domain.SurfaceComments, Enabled: true, Mode: domain.ModeReplyOnly,
	}))
	require.NoError(t, s.autoreply.SaveSetting(ctx, domain.AutoReplySetting{
		AccountRef: "acc-2", Surface: domain.SurfaceComments, Enabled: false, Mode: domain.ModeReplyOnly,
	}))
	require.NoError(t, s.autoreply.SaveSetting(ctx, domain.AutoReplySetting{
		AccountRef: "acc-3", Surface: domain.SurfaceDMs, Enabled: true, Mode: domain.ModeReplyOnly,
	}))

	enabled, err := s.autoreply.ListEnabledSettings(ctx, domain.SurfaceComments)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "acc-1", enabled[0].AccountRef)
}

func TestAutoReply_PersonaRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.autoreply.GetPersona(ctx, "acc-1")
	assert.ErrorIs(t, err, domain.ErrPersonaNotFound)

	require.NoError(t, s.autoreply.SavePersona(ctx, domain.Persona{
		AccountRef:  "acc-1",
		DisplayName: "Chef Ana",
		Tone:        "warm",
		SignOff:     "- Ana",
	}))

	p, err := s.autoreply.GetPersona(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Chef Ana", p.DisplayName)
	assert.Equal(t, "- Ana", p.SignOff)
	assert.Empty(t, p.Language)
}

func TestAutoReply_CreateLogRejectsDuplicateSource(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entry := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		SourceID:   "c1",
		Decision:   domain.DecisionReply,
		Status:     domain.LogPending,
	}
	require.NoError(t, s.autoreply.CreateLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	dup := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		SourceID:   "c1",
		Decision:   domain.DecisionReply,
		Status:     domain.LogPending,
	}
	assert.ErrorIs(t, s.autoreply.CreateLog(ctx, dup), domain.ErrDuplicateSource)

	other := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceDMs,
		SourceID:   "c1",
		Decision:   domain.DecisionReply,
		Status:     domain.LogPending,
	}
	assert.NoError(t, s.autoreply.CreateLog(ctx, other))

	seen, err := s.autoreply.HasSource(ctx, "acc-1", domain.SurfaceComments, "c1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestAutoReply_UpdateLogTerminalOnlyGrowsError(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entry := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		SourceID:   "c1",
		Decision:   domain.DecisionReply,
		Status:     domain.LogPending,
	}
	require.NoError(t, s.autoreply.CreateLog(ctx, entry))

	repliedAt := time.Now().UTC()
	require.NoError(t, s.autoreply.UpdateLog(ctx, entry.ID, domain.LogUpdate{Status: domain.LogReplied, RepliedAt: &repliedAt}))
	require.NoError(t, s.autoreply.UpdateLog(ctx, entry.ID, domain.LogUpdate{Status: domain.LogFailed, Error: "late failure"}))

	got, err := s.autoreply.GetLog(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LogReplied, got.Status)
	require.NotNil(t, got.RepliedAt)
	assert.Equal(t, "late failure", got.Error)

	assert.ErrorIs(t, s.autoreply.UpdateLog(ctx, "missing", domain.LogUpdate{Status: domain.LogFailed}), domain.ErrLogNotFound)
}

func TestAutoReply_RecentSourceIDsAndListLogs(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, s.autoreply.CreateLog(ctx, &domain.AutoReplyLogEntry{
			AccountRef: "acc-1",
			Surface:    domain.SurfaceComments,
			SourceID:   id,
			Decision:   domain.DecisionReply,
			Status:     domain.LogPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	ids, err := s.autoreply.RecentSourceIDs(ctx, "acc-1", domain.SurfaceComments, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c2"}, ids)

	logs, err := s.autoreply.ListLogs(ctx, "acc-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "c3", logs[0].SourceID)
}

func TestAutoReply_UpdateLogReplyAndHideNeedsBothParts(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entry := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		SourceID:   "c1",
		Decision:   domain.DecisionReplyAndHide,
		Status:     domain.LogPending,
	}
	require.NoError(t, s.autoreply.CreateLog(ctx, entry))

	hiddenAt := time.Now().UTC()
	require.NoError(t, s.autoreply.UpdateLog(ctx, entry.ID, domain.LogUpdate{Part: domain.LogPartHide, Status: domain.LogHidden, RepliedAt: &hiddenAt}))

	got, err := s.autoreply.GetLog(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LogPending, got.Status)
	assert.Nil(t, got.RepliedAt)

	require.NoError(t, s.autoreply.UpdateLog(ctx, entry.ID, domain.LogUpdate{Part: domain.LogPartReply, Status: domain.LogFailed, Error: "rate limited"}))

	got, err = s.autoreply.GetLog(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LogFailed, got.Status)
	assert.Nil(t, got.RepliedAt)
	assert.Equal(t, "reply: rate limited", got.Error)
}

func TestAutoReply_DeleteLogFreesSource(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entry := &domain.AutoReplyLogEntry{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		SourceID:   "c1",
		Decision:   domain.DecisionReply,
		Status:     domain.LogPending,
	}
	require.NoError(t, s.autoreply.CreateLog(ctx, entry))
	require.NoError(t, s.autoreply.DeleteLog(ctx, entry.ID))

	seen, err := s.autoreply.HasSource(ctx, "acc-1", domain.SurfaceComments, "c1")
	require.NoError(t, err)
	assert.False(t, seen)
	_, err = s.autoreply.GetLog(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrLogNotFound)
}
