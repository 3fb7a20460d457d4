package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const staleDetail = "dispatch interrupted before outcome was recorded"

type DispatcherConfig struct {
	TickInterval   time.Duration
	BatchSize      int
	MaxConcurrency int
	ActionTimeout  time.Duration
	StaleAfter     time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 5
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Minute
	}
	return c
}

type DispatcherDeps struct {
	Queue     domain.QueueStore
	Accounts  domain.AccountStore
	Logs      domain.AutoReplyLogWriter
	Platforms domain.PlatformClient
	Guard     domain.Guard
	Tokens    *TokenManager
	// Notifier is optional.
	Notifier  domain.ActionNotifier
}

// TickReport summarizes one RunTick.
type TickReport struct {
	Found     int   `json:"found"`
	Claimed   int   `json:"claimed"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Swept     int64 `json:"swept"`
}

type DispatcherStats struct {
	TicksRun   int64     `json:"ticks_run"`
	Dispatched int64     `json:"dispatched"`
	Succeeded  int64     `json:"succeeded"`
	Failed     int64     `json:"failed"`
	Swept      int64     `json:"swept"`
	LastTickAt time.Time `json:"last_tick_at"`
	Running    bool      `json:"running"`
}

type periodicJob struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
}

// Dispatcher drives due actions from the queue to the platform clients.
// Each action is claimed in the store before any external call, so two
// dispatchers sharing a store never execute the same action twice.
type Dispatcher struct {
	cfg    DispatcherConfig
	deps   DispatcherDeps
	tracer trace.Tracer

	tickMu sync.Mutex

	cronMu   sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	periodic []periodicJob

	ticks      atomic.Int64
	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	swept      atomic.Int64
	lastTick   atomic.Int64
}

func NewDispatcher(cfg DispatcherConfig, deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		tracer: otel.Tracer("github.com/AzielCF/az-social/automation"),
	}
}

// RunTick dispatches up to BatchSize due actions, oldest first.
// Ticks never overlap; a second caller waits for the running tick.
func (d *Dispatcher) RunTick(ctx context.Context, now time.Time) (TickReport, error) {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	ctx, span := d.tracer.Start(ctx, "dispatcher.tick")
	defer span.End()

	d.ticks.Add(1)
	d.lastTick.Store(now.UnixNano())

	var report TickReport

	swept, err := d.SweepStale(ctx, now)
	if err != nil {
		logrus.WithError(err).Warn("[DISPATCHER] Stale sweep failed")
	}
	report.Swept = swept

	due, err := d.deps.Queue.FindDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find due")
		return report, fmt.Errorf("find due actions: %w", err)
	}
	report.Found = len(due)
	if len(due) == 0 {
		return report, nil
	}

	claimed := make([]domain.ScheduledAction, 0, len(due))
	for _, action := range due {
		if d.claim(ctx, action.ID, now) {
			claimed = append(claimed, action)
		}
	}
	report.Claimed = len(claimed)
	span.SetAttributes(
		attribute.Int("actions.found", report.Found),
		attribute.Int("actions.claimed", report.Claimed),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrency)
	for _, action := range claimed {
		action := action
		g.Go(func() error {
			outcome := d.dispatch(gctx, action)
			mu.Lock()
			if outcome.Status == domain.StatusFailed {
				report.Failed++
			} else {
				report.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if report.Claimed > 0 {
		logrus.Infof("[DISPATCHER] Tick done: found=%d claimed=%d ok=%d failed=%d", report.Found, report.Claimed, report.Succeeded, report.Failed)
	}
	return report, nil
}

// DispatchNow claims and dispatches a single action outside the tick.
// It returns ErrNotPending when the action was not claimable.
func (d *Dispatcher) DispatchNow(ctx context.Context, id string, now time.Time) (domain.ScheduledAction, error) {
	action, err := d.deps.Queue.Get(ctx, id)
	if err != nil {
		return domain.ScheduledAction{}, err
	}
	if action.Status != domain.StatusPending {
		return action, domain.ErrNotPending
	}
	if !d.claim(ctx, id, now) {
		return action, domain.ErrNotPending
	}
	d.dispatch(ctx, action)
	return d.deps.Queue.Get(context.WithoutCancel(ctx), id)
}

// SweepStale fails IN_FLIGHT actions whose claim is older than StaleAfter.
func (d *Dispatcher) SweepStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := d.deps.Queue.SweepStale(ctx, now.Add(-d.cfg.StaleAfter), staleDetail)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.swept.Add(n)
		logrus.Warnf("[DISPATCHER] Marked %d stale in-flight action(s) as failed", n)
	}
	return n, nil
}

func (d *Dispatcher) claim(ctx context.Context, id string, now time.Time) bool {
	if d.deps.Guard != nil {
		ok, err := d.deps.Guard.Claim(ctx, id)
		if err != nil {
			logrus.WithError(err).Warnf("[DISPATCHER] Guard claim failed for %s, relying on store", id)
		} else if !ok {
			return false
		}
	}

	ok, err := d.deps.Queue.Claim(ctx, id, now)
	if err != nil || !ok {
		if err != nil {
			logrus.WithError(err).Errorf("[DISPATCHER] Claim failed for %s", id)
		}
		d.release(ctx, id)
		return false
	}
	return true
}

func (d *Dispatcher) release(ctx context.Context, id string) {
	if d.deps.Guard == nil {
		return
	}
	if err := d.deps.Guard.Release(context.WithoutCancel(ctx), id); err != nil {
		logrus.WithError(err).Warnf("[DISPATCHER] Guard release failed for %s", id)
	}
}

// dispatch executes one claimed action and records its outcome.
func (d *Dispatcher) dispatch(ctx context.Context, action domain.ScheduledAction) (outcome domain.Outcome) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.dispatch", trace.WithAttributes(
		attribute.String("action.id", action.ID),
		attribute.String("action.kind", string(action.Kind)),
	))
	defer span.End()

	d.dispatched.Add(1)

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[DISPATCHER] Panic dispatching %s: %v", action.ID, r)
			outcome = domain.FailedOutcome(domain.NewUnknownError(fmt.Errorf("panic: %v", r)))
		}
		if outcome.Status == domain.StatusFailed {
			d.failed.Add(1)
			span.SetStatus(codes.Error, outcome.ErrorDetail)
		} else {
			d.succeeded.Add(1)
		}
		d.record(ctx, action, outcome)
	}()

	ref, err := d.execute(ctx, action)
	if err != nil {
		return domain.FailedOutcome(err)
	}
	return domain.SucceededOutcome(action.Kind, ref)
}

func (d *Dispatcher) execute(ctx context.Context, action domain.ScheduledAction) (string, error) {
	acc, err := d.deps.Accounts.Get(ctx, action.AccountRef)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.NewAccountNotConnectedError()
		}
		return "", err
	}
	if !acc.IsConnected {
		return "", domain.NewAccountNotConnectedError()
	}

	if err := action.Validate(); err != nil {
		return "", err
	}

	if d.deps.Tokens != nil {
		acc, err = d.deps.Tokens.Ensure(ctx, acc)
		if err != nil {
			return "", err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()

	p := action.Payload
	switch action.Kind {
	case domain.KindPublishPost:
		res, err := d.deps.Platforms.Publish(callCtx, acc, domain.PublishRequest{
			MediaURL:  p.MediaURL,
			Caption:   p.Caption,
			MediaType: p.MediaType,
			Title:     p.Title,
		})
		return res.MediaID, err
	case domain.KindCommentReply:
		return d.deps.Platforms.Reply(callCtx, acc, p.ParentID, p.Text)
	case domain.KindDMReply:
		return d.deps.Platforms.SendDirectMessage(callCtx, acc, p.RecipientID, p.Text)
	case domain.KindModerateComment:
		return p.ContentID, d.deps.Platforms.Moderate(callCtx, acc, p.ContentID, p.Moderation)
	}
	return "", domain.NewValidationError("unknown action kind " + string(action.Kind))
}

// record persists the outcome even when the tick context is already gone.
func (d *Dispatcher) record(ctx context.Context, action domain.ScheduledAction, outcome domain.Outcome) {
	ctx = context.WithoutCancel(ctx)
	defer d.release(ctx, action.ID)

	entry := logrus.WithFields(logrus.Fields{
		"action_id": action.ID,
		"kind":      action.Kind,
		"status":    outcome.Status,
	})
	if err := d.deps.Queue.UpdateStatus(ctx, action.ID, outcome); err != nil {
		entry.WithError(err).Error("[DISPATCHER] Failed to record outcome")
	} else {
		if outcome.Status == domain.StatusFailed {
			entry.Warnf("[DISPATCHER] Action failed: %s", outcome.ErrorDetail)
		} else {
			entry.Infof("[DISPATCHER] Action done: %s", outcome.ResultRef)
		}
		d.notify(action, outcome)
	}

	if action.LogEntryID == "" || d.deps.Logs == nil {
		return
	}
	update := domain.LogUpdate{Part: domain.LogPartReply, Status: domain.LogReplied}
	if action.Kind == domain.KindModerateComment {
		update = domain.LogUpdate{Part: domain.LogPartHide, Status: domain.LogHidden}
	}
	switch {
	case outcome.Status == domain.StatusFailed:
		update.Status = domain.LogFailed
		update.Error = outcome.ErrorDetail
	case update.Part == domain.LogPartReply:
		at := time.Now().UTC()
		update.RepliedAt = &at
	}
	if err := d.deps.Logs.UpdateLog(ctx, action.LogEntryID, update); err != nil {
		entry.WithError(err).Warn("[DISPATCHER] Failed to update auto-reply log")
	}
}

func (d *Dispatcher) notify(action domain.ScheduledAction, outcome domain.Outcome) {
	if d.deps.Notifier == nil {
		return
	}
	d.deps.Notifier.NotifyAction(domain.ActionEvent{
		ActionID:    action.ID,
		AccountRef:  action.AccountRef,
		Kind:        action.Kind,
		Status:      outcome.Status,
		ResultRef:   outcome.ResultRef,
		ErrorKind:   outcome.ErrorKind,
		ErrorDetail: outcome.ErrorDetail,
		At:          time.Now().UTC(),
	})
}

// RegisterPeriodic adds a job that runs on the dispatcher's cron after Start.
func (d *Dispatcher) RegisterPeriodic(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	d.cronMu.Lock()
	d.periodic = append(d.periodic, periodicJob{name: name, interval: interval, fn: fn})
	d.cronMu.Unlock()
}

// Start sweeps stale claims and schedules the tick every TickInterval.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.cronMu.Lock()
	defer d.cronMu.Unlock()

	if d.cron != nil {
		return errors.New("dispatcher already started")
	}

	if _, err := d.SweepStale(ctx, time.Now().UTC()); err != nil {
		logrus.WithError(err).Warn("[DISPATCHER] Startup stale sweep failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(logrus.StandardLogger())),
		cron.DelayIfStillRunning(cron.PrintfLogger(logrus.StandardLogger())),
	))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", d.cfg.TickInterval), func() {
		if _, err := d.RunTick(runCtx, time.Now().UTC()); err != nil {
			logrus.WithError(err).Error("[DISPATCHER] Tick failed")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule tick: %w", err)
	}

	for _, job := range d.periodic {
		job := job
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", job.interval), func() { job.fn(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		logrus.Infof("[DISPATCHER] Periodic job %s every %s", job.name, job.interval)
	}

	c.Start()
	d.cron = c
	d.cancel = cancel
	logrus.Infof("[DISPATCHER] Started: tick=%s batch=%d concurrency=%d", d.cfg.TickInterval, d.cfg.BatchSize, d.cfg.MaxConcurrency)
	return nil
}

// Stop stops scheduling and waits for a running tick to finish.
func (d *Dispatcher) Stop() {
	d.cronMu.Lock()
	c, cancel := d.cron, d.cancel
	d.cron, d.cancel = nil, nil
	d.cronMu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	logrus.Info("[DISPATCHER] Stopped")
}

func (d *Dispatcher) Stats() DispatcherStats {
	s := DispatcherStats{
		TicksRun:   d.ticks.Load(),
		Dispatched: d.dispatched.Load(),
		Succeeded:  d.succeeded.Load(),
		Failed:     d.failed.Load(),
		Swept:      d.swept.Load(),
	}
	if ns := d.lastTick.Load(); ns > 0 {
		s.LastTickAt = time.Unix(0, ns).UTC()
	}
	d.cronMu.Lock()
	s.Running = d.cron != nil
	d.cronMu.Unlock()
	return s
}
