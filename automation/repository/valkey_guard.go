package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-social/infrastructure/valkey"
)

const (
	defaultSourceTTL = 7 * 24 * time.Hour
	defaultClaimTTL  = 10 * time.Minute
)

// ValkeyGuard implements domain.Guard with SET NX EX keys, so admitted
// sources survive a restart for SourceTTL. Claims expire after ClaimTTL
// and never outlive a crashed dispatcher by more than that.
type ValkeyGuard struct {
	client    *valkey.Client
	sourceTTL time.Duration
	claimTTL  time.Duration
}

func NewValkeyGuard(client *valkey.Client, sourceTTL, claimTTL time.Duration) *ValkeyGuard {
	if sourceTTL <= 0 {
		sourceTTL = defaultSourceTTL
	}
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &ValkeyGuard{client: client, sourceTTL: sourceTTL, claimTTL: claimTTL}
}

func (g *ValkeyGuard) sourceKey(key string) string {
	return g.client.Key("guard", "source", key)
}

func (g *ValkeyGuard) claimKey(actionID string) string {
	return g.client.Key("guard", "claim", actionID)
}

func (g *ValkeyGuard) AdmitSource(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, g.sourceKey(key), "1", g.sourceTTL)
}

func (g *ValkeyGuard) ForgetSource(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.sourceKey(key))
}

func (g *ValkeyGuard) Claim(ctx context.Context, actionID string) (bool, error) {
	return g.client.SetNX(ctx, g.claimKey(actionID), time.Now().UTC().Format(time.RFC3339), g.claimTTL)
}

func (g *ValkeyGuard) Release(ctx context.Context, actionID string) error {
	return g.client.Del(ctx, g.claimKey(actionID))
}
