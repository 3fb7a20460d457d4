package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/stretchr/testify/mock"
)

type mockTextService struct{ mock.Mock }

func (m *mockTextService) GenerateReply(ctx context.Context, prompt domain.ReplyPrompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(domain.Verdict), args.Error(1)
}

type mockPersonas struct{ mock.Mock }

func (m *mockPersonas) GetPersona(ctx context.Context, accountRef string) (domain.Persona, error) {
	args := m.Called(ctx, accountRef)
	return args.Get(0).(domain.Persona), args.Error(1)
}

type mockRefresher struct{ mock.Mock }

func (m *mockRefresher) Refresh(ctx context.Context, acc domain.ConnectedAccount) (domain.TokenSet, error) {
	args := m.Called(ctx, acc)
	return args.Get(0).(domain.TokenSet), args.Error(1)
}

// fakePlatform records every call and answers from configurable hooks.
type fakePlatform struct {
	mu    sync.Mutex
	calls []string

	publishCalls  int32
	replyCalls    int32
	dmCalls       int32
	moderateCalls int32

	delay    time.Duration
	publish  func(req domain.PublishRequest) (domain.PublishResult, error)
	reply    func(parentID, text string) (string, error)
	comments []domain.InboundComment
	knownIDs []string
}

func (f *fakePlatform) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakePlatform) Publish(ctx context.Context, acc domain.ConnectedAccount, req domain.PublishRequest) (domain.PublishResult, error) {
	n := atomic.AddInt32(&f.publishCalls, 1)
	f.record("publish:" + req.MediaURL)
	if err := f.wait(ctx); err != nil {
		return domain.PublishResult{}, err
	}
	if f.publish != nil {
		return f.publish(req)
	}
	return domain.PublishResult{MediaID: fmt.Sprintf("M%d", n)}, nil
}

func (f *fakePlatform) Reply(ctx context.Context, acc domain.ConnectedAccount, parentID, text string) (string, error) {
	n := atomic.AddInt32(&f.replyCalls, 1)
	f.record("reply:" + parentID)
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.reply != nil {
		return f.reply(parentID, text)
	}
	return fmt.Sprintf("R%d", n), nil
}

func (f *fakePlatform) SendDirectMessage(ctx context.Context, acc domain.ConnectedAccount, recipientID, text string) (string, error) {
	n := atomic.AddInt32(&f.dmCalls, 1)
	f.record("dm:" + recipientID)
	return fmt.Sprintf("D%d", n), nil
}

func (f *fakePlatform) Moderate(ctx context.Context, acc domain.ConnectedAccount, contentID string, action domain.ModerationAction) error {
	atomic.AddInt32(&f.moderateCalls, 1)
	f.record(string(action) + ":" + contentID)
	return nil
}

func (f *fakePlatform) FetchNewComments(ctx context.Context, acc domain.ConnectedAccount, knownIDs []string) ([]domain.InboundComment, error) {
	f.mu.Lock()
	f.knownIDs = append([]string(nil), knownIDs...)
	f.mu.Unlock()
	return f.comments, nil
}

func (f *fakePlatform) totalCalls() int32 {
	return atomic.LoadInt32(&f.publishCalls) + atomic.LoadInt32(&f.replyCalls) +
		atomic.LoadInt32(&f.dmCalls) + atomic.LoadInt32(&f.moderateCalls)
}
