// Package platforms selects the platform client for an account.
package platforms

import (
	"context"
	"fmt"
	"sync"

	"github.com/AzielCF/az-social/automation/domain"
)

// Router implements domain.PlatformClient by delegating on account.Platform.
type Router struct {
	mu      sync.RWMutex
	clients map[domain.Platform]domain.PlatformClient
}

func NewRouter() *Router {
	return &Router{clients: make(map[domain.Platform]domain.PlatformClient)}
}

func (r *Router) Register(platform domain.Platform, client domain.PlatformClient) {
	r.mu.Lock()
	r.clients[platform] = client
	r.mu.Unlock()
}

func (r *Router) client(platform domain.Platform) (domain.PlatformClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[platform]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("%v: %s", domain.ErrUnsupportedRoute, platform))
	}
	return c, nil
}

func (r *Router) Publish(ctx context.Context, acc domain.ConnectedAccount, req domain.PublishRequest) (domain.PublishResult, error) {
	c, err := r.client(acc.Platform)
	if err != nil {
		return domain.PublishResult{}, err
	}
	return c.Publish(ctx, acc, req)
}

func (r *Router) Reply(ctx context.Context, acc domain.ConnectedAccount, parentID, text string) (string, error) {
	c, err := r.client(acc.Platform)
	if err != nil {
		return "", err
	}
	return c.Reply(ctx, acc, parentID, text)
}

func (r *Router) SendDirectMessage(ctx context.Context, acc domain.ConnectedAccount, recipientID, text string) (string, error) {
	c, err := r.client(acc.Platform)
	if err != nil {
		return "", err
	}
	return c.SendDirectMessage(ctx, acc, recipientID, text)
}

func (r *Router) Moderate(ctx context.Context, acc domain.ConnectedAccount, contentID string, action domain.ModerationAction) error {
	c, err := r.client(acc.Platform)
	if err != nil {
		return err
	}
	return c.Moderate(ctx, acc, contentID, action)
}

func (r *Router) FetchNewComments(ctx context.Context, acc domain.ConnectedAccount, knownIDs []string) ([]domain.InboundComment, error) {
	c, err := r.client(acc.Platform)
	if err != nil {
		return nil, err
	}
	return c.FetchNewComments(ctx, acc, knownIDs)
}
