package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
)

const defaultLogLimit = 100

// AutomationService is the user-facing API over the automation core.
type AutomationService struct {
	queue        domain.QueueStore
	accounts     domain.AccountStore
	autoreply    domain.AutoReplyStore
	dispatcher   *Dispatcher
	delays       *DelayScheduler
	defaultDelay domain.DelayPolicy
	now          func() time.Time
}

type ServiceDeps struct {
	Queue      domain.QueueStore
	Accounts   domain.AccountStore
	AutoReply  domain.AutoReplyStore
	Dispatcher *Dispatcher
	Delays     *DelayScheduler

	// DefaultDelay is used for settings saved without an explicit delay.
	// Immediate replies are expressed as FixedSeconds = 0.
	DefaultDelay domain.DelayPolicy
}

func NewAutomationService(deps ServiceDeps) *AutomationService {
	return &AutomationService{
		queue:        deps.Queue,
		accounts:     deps.Accounts,
		autoreply:    deps.AutoReply,
		dispatcher:   deps.Dispatcher,
		delays:       deps.Delays,
		defaultDelay: deps.DefaultDelay,
		now:          time.Now,
	}
}

// SchedulePost enqueues a PUBLISH_POST action. A zero ScheduledAt means now.
func (s *AutomationService) SchedulePost(ctx context.Context, req domain.SchedulePostRequest) (domain.ScheduledAction, error) {
	acc, err := s.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return domain.ScheduledAction{}, err
	}

	dueAt := req.ScheduledAt.UTC()
	if req.ScheduledAt.IsZero() {
		dueAt = s.now().UTC()
	}
	action := domain.ScheduledAction{
		AccountRef: acc.ID,
		Kind:       domain.KindPublishPost,
		Payload: domain.ActionPayload{
			Caption:   req.Caption,
			MediaURL:  strings.TrimSpace(req.MediaURL),
			MediaType: req.MediaType,
			Title:     req.Title,
		},
		DueAt: dueAt,
	}
	if err := action.Validate(); err != nil {
		return domain.ScheduledAction{}, err
	}
	if acc.Platform == domain.PlatformYouTube && !req.MediaType.IsVideo() {
		return domain.ScheduledAction{}, domain.NewValidationError("youtube only accepts video uploads")
	}

	if err := s.queue.Enqueue(ctx, &action); err != nil {
		return domain.ScheduledAction{}, err
	}
	s.hold(action)

	logrus.WithFields(logrus.Fields{
		"action_id": action.ID,
		"account":   acc.ID,
		"due_at":    action.DueAt.Format(time.RFC3339),
	}).Infof("[SERVICE] Post scheduled, due %s", humanize.Time(action.DueAt))
	return action, nil
}

func (s *AutomationService) hold(action domain.ScheduledAction) {
	if s.delays == nil || s.dispatcher == nil {
		return
	}
	s.delays.Hold(action.ID, action.DueAt, func(id string) {
		if _, err := s.dispatcher.DispatchNow(context.Background(), id, time.Now().UTC()); err != nil && !errors.Is(err, domain.ErrNotPending) {
			logrus.WithError(err).Warnf("[SERVICE] Held dispatch of %s failed", id)
		}
	})
}

// Cancel moves a PENDING action to CANCELLED. Any other status is left
// untouched and reported as ErrNotCancellable.
func (s *AutomationService) Cancel(ctx context.Context, id string) (domain.ScheduledAction, error) {
	if err := s.queue.Cancel(ctx, id); err != nil {
		return domain.ScheduledAction{}, err
	}
	if s.delays != nil {
		s.delays.Release(id)
	}
	return s.queue.Get(ctx, id)
}

// Retry creates a new PENDING copy of a FAILED action, due now.
func (s *AutomationService) Retry(ctx context.Context, id string) (domain.ScheduledAction, error) {
	orig, err := s.queue.Get(ctx, id)
	if err != nil {
		return domain.ScheduledAction{}, err
	}
	if orig.Status != domain.StatusFailed {
		return domain.ScheduledAction{}, domain.ErrNotRetryable
	}

	retry := domain.ScheduledAction{
		AccountRef: orig.AccountRef,
		Kind:       orig.Kind,
		Payload:    orig.Payload,
		DueAt:      s.now().UTC(),
		RetryOf:    orig.ID,
	}
	if err := s.queue.Enqueue(ctx, &retry); err != nil {
		return domain.ScheduledAction{}, err
	}
	logrus.Infof("[SERVICE] Action %s retried as %s", orig.ID, retry.ID)
	return retry, nil
}

// PublishNow moves a PENDING action's due time to now and dispatches it.
func (s *AutomationService) PublishNow(ctx context.Context, id string) (domain.ScheduledAction, error) {
	now := s.now().UTC()
	if err := s.queue.ResetDue(ctx, id, now); err != nil {
		return domain.ScheduledAction{}, err
	}
	if s.delays != nil {
		s.delays.Release(id)
	}
	if s.dispatcher == nil {
		return s.queue.Get(ctx, id)
	}
	return s.dispatcher.DispatchNow(ctx, id, now)
}

func (s *AutomationService) Get(ctx context.Context, id string) (domain.ScheduledAction, error) {
	return s.queue.Get(ctx, id)
}

func (s *AutomationService) ListByUser(ctx context.Context, userRef string) ([]domain.ScheduledAction, error) {
	return s.queue.ListByUser(ctx, userRef)
}

// Accounts

func (s *AutomationService) ConnectAccount(ctx context.Context, req domain.ConnectAccountRequest) (domain.ConnectedAccount, error) {
	acc := domain.ConnectedAccount{
		UserRef:        strings.TrimSpace(req.UserRef),
		Platform:       req.Platform,
		PlatformUserID: strings.TrimSpace(req.PlatformUserID),
		Username:       strings.TrimSpace(req.Username),
		AccessToken:    req.AccessToken,
		RefreshToken:   req.RefreshToken,
		TokenExpiry:    req.TokenExpiry,
	}
	if err := s.accounts.Connect(ctx, &acc); err != nil {
		return domain.ConnectedAccount{}, err
	}
	logrus.Infof("[SERVICE] Account %s connected (%s/%s)", acc.ID, acc.UserRef, acc.Platform)
	return acc, nil
}

func (s *AutomationService) DisconnectAccount(ctx context.Context, id string) error {
	return s.accounts.Disconnect(ctx, id)
}

func (s *AutomationService) GetAccount(ctx context.Context, id string) (domain.ConnectedAccount, error) {
	return s.accounts.Get(ctx, id)
}

// Auto-reply

func (s *AutomationService) SaveAutoReplySetting(ctx context.Context, req domain.AutoReplySettingRequest) (domain.AutoReplySetting, error) {
	acc, err := s.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return domain.AutoReplySetting{}, err
	}
	if acc.Platform == domain.PlatformYouTube && req.Surface == domain.SurfaceDMs && req.Enabled {
		return domain.AutoReplySetting{}, domain.NewValidationError("youtube has no direct messages")
	}
	policy := req.DelayPolicy()
	if policy.FixedSeconds == nil && policy.MinSeconds == 0 && policy.MaxSeconds == 0 {
		policy = s.defaultDelay
	}
	if err := policy.Validate(); err != nil {
		return domain.AutoReplySetting{}, domain.NewValidationError(err.Error())
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeReplyOnly
	}
	if err := validation.Validate(mode, validation.In(domain.ModeReplyOnly, domain.ModeReplyAndModerate, domain.ModeAIPersona)); err != nil {
		return domain.AutoReplySetting{}, domain.NewValidationError("mode: " + err.Error())
	}

	setting := domain.AutoReplySetting{
		AccountRef:    req.AccountID,
		Surface:       req.Surface,
		Enabled:       req.Enabled,
		Delay:         policy,
		StaticMessage: req.StaticMessage,
		Mode:          mode,
		HideNotice:    strings.TrimSpace(req.HideNotice),
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.autoreply.SaveSetting(ctx, setting); err != nil {
		return domain.AutoReplySetting{}, err
	}
	return setting, nil
}

func (s *AutomationService) GetAutoReplySetting(ctx context.Context, accountID string, surface domain.Surface) (domain.AutoReplySetting, error) {
	return s.autoreply.GetSetting(ctx, accountID, surface)
}

func (s *AutomationService) SavePersona(ctx context.Context, req domain.PersonaRequest) (domain.Persona, error) {
	if _, err := s.accounts.Get(ctx, req.AccountID); err != nil {
		return domain.Persona{}, err
	}
	p := domain.Persona{
		AccountRef:  req.AccountID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Tone:        strings.TrimSpace(req.Tone),
		StyleNotes:  strings.TrimSpace(req.StyleNotes),
		SignOff:     strings.TrimSpace(req.SignOff),
		Language:    strings.TrimSpace(req.Language),
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.autoreply.SavePersona(ctx, p); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

func (s *AutomationService) GetPersona(ctx context.Context, accountID string) (domain.Persona, error) {
	return s.autoreply.GetPersona(ctx, accountID)
}

func (s *AutomationService) ListLogs(ctx context.Context, accountID string, limit int) ([]domain.AutoReplyLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultLogLimit
	}
	return s.autoreply.ListLogs(ctx, accountID, limit)
}
