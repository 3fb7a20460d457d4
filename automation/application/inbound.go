package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
)

type InboundConfig struct {
	// AuditSkipped writes a skipped log entry for SKIP decisions.
	AuditSkipped   bool
	KnownIDsWindow int
}

// ActionFirer dispatches a held action when its timer elapses.
type ActionFirer interface {
	DispatchNow(ctx context.Context, id string, now time.Time) (domain.ScheduledAction, error)
}

// InboundResult describes what HandleInbound did with one event.
type InboundResult struct {
	Duplicate bool
	Decision  domain.Decision
	LogEntry  *domain.AutoReplyLogEntry
	Actions   []domain.ScheduledAction
}

// InboundPipeline turns new comments and direct messages into scheduled
// replies and moderation actions.
type InboundPipeline struct {
	cfg       InboundConfig
	accounts  domain.AccountStore
	autoreply domain.AutoReplyStore
	queue     domain.QueueStore
	guard     domain.Guard
	engine    *DecisionEngine
	delays    *DelayScheduler
	firer     ActionFirer
	platforms domain.PlatformClient
	tokens    *TokenManager
	now       func() time.Time
}

type InboundDeps struct {
	Accounts  domain.AccountStore
	AutoReply domain.AutoReplyStore
	Queue     domain.QueueStore
	Guard     domain.Guard
	Engine    *DecisionEngine
	Delays    *DelayScheduler
	Firer     ActionFirer
	Platforms domain.PlatformClient
	Tokens    *TokenManager
}

func NewInboundPipeline(cfg InboundConfig, deps InboundDeps) *InboundPipeline {
	if cfg.KnownIDsWindow <= 0 {
		cfg.KnownIDsWindow = 500
	}
	if deps.Delays == nil {
		deps.Delays = NewDelayScheduler(0)
	}
	return &InboundPipeline{
		cfg:       cfg,
		accounts:  deps.Accounts,
		autoreply: deps.AutoReply,
		queue:     deps.Queue,
		guard:     deps.Guard,
		engine:    deps.Engine,
		delays:    deps.Delays,
		firer:     deps.Firer,
		platforms: deps.Platforms,
		tokens:    deps.Tokens,
		now:       time.Now,
	}
}

func sourceKey(accountRef string, surface domain.Surface, sourceID string) string {
	return fmt.Sprintf("%s:%s:%s", accountRef, surface, sourceID)
}

// HandleInbound processes one inbound event at most once per
// (account, surface, source id).
func (p *InboundPipeline) HandleInbound(ctx context.Context, ev domain.InboundEvent) (InboundResult, error) {
	var res InboundResult

	if ev.SourceID == "" {
		return res, errors.New("inbound event without source id")
	}

	acc, err := p.resolveAccount(ctx, ev)
	if err != nil {
		return res, err
	}
	if !acc.IsConnected {
		logrus.Debugf("[INBOUND] Account %s is disconnected, ignoring %s", acc.ID, ev.SourceID)
		return res, nil
	}
	ev.AccountRef = acc.ID
	if ev.AuthorID != "" && ev.AuthorID == acc.PlatformUserID {
		return res, nil
	}

	key := sourceKey(acc.ID, ev.Surface, ev.SourceID)
	if p.guard != nil {
		admitted, err := p.guard.AdmitSource(ctx, key)
		if err != nil {
			logrus.WithError(err).Warnf("[INBOUND] Guard unavailable for %s, relying on store", key)
		} else if !admitted {
			res.Duplicate = true
			return res, nil
		}
	}

	seen, err := p.autoreply.HasSource(ctx, acc.ID, ev.Surface, ev.SourceID)
	if err != nil {
		p.forget(ctx, key)
		return res, fmt.Errorf("check source %s: %w", key, err)
	}
	if seen {
		res.Duplicate = true
		return res, nil
	}

	setting, err := p.autoreply.GetSetting(ctx, acc.ID, ev.Surface)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingNotFound) {
			p.forget(ctx, key)
			return res, fmt.Errorf("load setting: %w", err)
		}
		setting = domain.AutoReplySetting{AccountRef: acc.ID, Surface: ev.Surface}
	}

	decision := p.engine.Decide(ctx, ev, setting)
	res.Decision = decision

	if decision.Action == domain.DecisionSkip && !p.cfg.AuditSkipped {
		return res, nil
	}

	now := p.now().UTC()
	entry := &domain.AutoReplyLogEntry{
		AccountRef:     acc.ID,
		Surface:        ev.Surface,
		SourceID:       ev.SourceID,
		SourceAuthorID: ev.AuthorID,
		SourceText:     ev.Text,
		Decision:       decision.Action,
		ReplyText:      decision.ReplyText,
		Status:         domain.LogPending,
	}
	if decision.Action == domain.DecisionSkip {
		entry.Status = domain.LogSkipped
		entry.Error = decision.Reason
	}

	actions := p.buildActions(acc, ev, setting, decision, now)
	if len(actions) > 0 {
		earliest := actions[0].DueAt
		for _, a := range actions[1:] {
			if a.DueAt.Before(earliest) {
				earliest = a.DueAt
			}
		}
		entry.ScheduledAt = &earliest
	}

	if err := p.autoreply.CreateLog(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateSource) {
			res.Duplicate = true
			return res, nil
		}
		p.forget(ctx, key)
		return res, fmt.Errorf("create log entry: %w", err)
	}
	res.LogEntry = entry

	for i := range actions {
		actions[i].LogEntryID = entry.ID
		if err := p.queue.Enqueue(ctx, &actions[i]); err != nil {
			err = fmt.Errorf("enqueue %s: %w", actions[i].Kind, err)
			p.rollback(ctx, key, entry.ID, res.Actions, err)
			return InboundResult{Decision: decision}, err
		}
		res.Actions = append(res.Actions, actions[i])
	}
	for _, a := range res.Actions {
		p.hold(a)
	}

	logrus.WithFields(logrus.Fields{
		"account": acc.ID,
		"surface": ev.Surface,
		"source":  ev.SourceID,
		"actions": len(res.Actions),
	}).Infof("[INBOUND] Decision %s", decision.Action)
	return res, nil
}

func (p *InboundPipeline) resolveAccount(ctx context.Context, ev domain.InboundEvent) (domain.ConnectedAccount, error) {
	if ev.AccountRef != "" {
		return p.accounts.Get(ctx, ev.AccountRef)
	}
	if ev.RecipientID == "" {
		return domain.ConnectedAccount{}, domain.ErrAccountNotFound
	}
	return p.accounts.GetByPlatformUser(ctx, ev.Platform, ev.RecipientID)
}

func (p *InboundPipeline) buildActions(acc domain.ConnectedAccount, ev domain.InboundEvent, setting domain.AutoReplySetting, d domain.Decision, now time.Time) []domain.ScheduledAction {
	var actions []domain.ScheduledAction

	if d.Action.Hides() && ev.Surface == domain.SurfaceComments {
		actions = append(actions, domain.ScheduledAction{
			AccountRef: acc.ID,
			Kind:       domain.KindModerateComment,
			Payload: domain.ActionPayload{
				SourceID:   ev.SourceID,
				ContentID:  ev.SourceID,
				Moderation: domain.ModerationHide,
			},
			DueAt: now,
		})
	}

	if d.Action.Replies() {
		dueAt := p.delays.ComputeDueAt(now, setting.Delay)
		reply := domain.ScheduledAction{
			AccountRef: acc.ID,
			DueAt:      dueAt,
			Payload: domain.ActionPayload{
				SourceID: ev.SourceID,
				Text:     d.ReplyText,
			},
		}
		if ev.Surface == domain.SurfaceDMs {
			reply.Kind = domain.KindDMReply
			reply.Payload.RecipientID = ev.AuthorID
		} else {
			reply.Kind = domain.KindCommentReply
			reply.Payload.ParentID = ev.SourceID
		}
		actions = append(actions, reply)
	}
	return actions
}

func (p *InboundPipeline) hold(action domain.ScheduledAction) {
	if p.delays == nil || p.firer == nil {
		return
	}
	p.delays.Hold(action.ID, action.DueAt, func(id string) {
		if _, err := p.firer.DispatchNow(context.Background(), id, time.Now().UTC()); err != nil && !errors.Is(err, domain.ErrNotPending) {
			logrus.WithError(err).Warnf("[INBOUND] Held dispatch of %s failed", id)
		}
	})
}

// rollback undoes a partly enqueued event so a redelivery of the same
// source starts over. When an enqueued sibling can no longer be cancelled
// the entry is kept and marked failed instead.
func (p *InboundPipeline) rollback(ctx context.Context, key, entryID string, enqueued []domain.ScheduledAction, cause error) {
	ctx = context.WithoutCancel(ctx)
	undone := true
	for _, a := range enqueued {
		if err := p.queue.Cancel(ctx, a.ID); err != nil {
			logrus.WithError(err).Warnf("[INBOUND] Failed to cancel %s after enqueue failure", a.ID)
			undone = false
		}
	}
	if undone {
		err := p.autoreply.DeleteLog(ctx, entryID)
		if err == nil {
			p.forget(ctx, key)
			return
		}
		logrus.WithError(err).Warnf("[INBOUND] Failed to delete log entry %s", entryID)
	}
	_ = p.autoreply.UpdateLog(ctx, entryID, domain.LogUpdate{
		Status: domain.LogFailed,
		Error:  cause.Error(),
	})
}

func (p *InboundPipeline) forget(ctx context.Context, key string) {
	if p.guard == nil {
		return
	}
	if err := p.guard.ForgetSource(context.WithoutCancel(ctx), key); err != nil {
		logrus.WithError(err).Warnf("[INBOUND] Failed to forget %s", key)
	}
}

// PollComments fetches new comments for every account with comment
// auto-reply enabled and feeds them through HandleInbound.
func (p *InboundPipeline) PollComments(ctx context.Context) (int, error) {
	if p.platforms == nil {
		return 0, nil
	}
	settings, err := p.autoreply.ListEnabledSettings(ctx, domain.SurfaceComments)
	if err != nil {
		return 0, fmt.Errorf("list enabled settings: %w", err)
	}

	handled := 0
	for _, s := range settings {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		acc, err := p.accounts.Get(ctx, s.AccountRef)
		if err != nil || !acc.IsConnected {
			continue
		}
		if p.tokens != nil {
			if acc, err = p.tokens.Ensure(ctx, acc); err != nil {
				logrus.WithError(err).Warnf("[INBOUND] Skipping poll for %s", acc.ID)
				continue
			}
		}

		known, err := p.autoreply.RecentSourceIDs(ctx, acc.ID, domain.SurfaceComments, p.cfg.KnownIDsWindow)
		if err != nil {
			logrus.WithError(err).Warnf("[INBOUND] Failed to load known comments for %s", acc.ID)
			continue
		}

		comments, err := p.platforms.FetchNewComments(ctx, acc, known)
		if err != nil {
			logrus.WithError(err).Warnf("[INBOUND] Comment poll failed for %s", acc.ID)
			continue
		}

		for _, c := range comments {
			res, err := p.HandleInbound(ctx, domain.InboundEvent{
				AccountRef:     acc.ID,
				Platform:       acc.Platform,
				Surface:        domain.SurfaceComments,
				SourceID:       c.ID,
				MediaID:        c.MediaID,
				AuthorID:       c.AuthorID,
				AuthorUsername: c.AuthorUsername,
				Text:           c.Text,
				ReceivedAt:     c.CreatedAt,
			})
			if err != nil {
				logrus.WithError(err).Warnf("[INBOUND] Failed to handle comment %s", c.ID)
				continue
			}
			if !res.Duplicate {
				handled++
			}
		}
	}
	return handled, nil
}
