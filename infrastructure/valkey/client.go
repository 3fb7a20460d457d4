// Package valkey wraps valkey-go with the few commands the automation core
// needs: NX keys for the dedup guard and pub/sub for the event stream.
package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const DefaultConnectTimeout = 5 * time.Second

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
	// DisableCache turns off client-side caching, required by servers without CLIENT TRACKING.
	DisableCache bool
}

// Client is created once in cmd and shared; callers never build raw commands.
type Client struct {
	inner  valkeylib.Client
	prefix string
}

// NewClient connects and pings within cfg.ConnectTimeout.
func NewClient(cfg Config) (*Client, error) {
	inner, err := valkeylib.NewClient(valkeylib.ClientOption{
		InitAddress:  []string{cfg.Address},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := &Client{inner: inner, prefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}
	if err := c.Ping(ctx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s (timeout: %v): %w", cfg.Address, timeout, err)
	}
	return c, nil
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts under the configured prefix: Key("guard", "claim", "a1")
// gives "azsocial:guard:claim:a1".
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return strings.Join(append([]string{c.prefix}, parts...), ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// SetNX writes key only when absent, expiring after ttl, and reports
// whether this call wrote it.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := c.inner.Do(ctx, c.inner.B().Set().Key(key).Value(value).Nx().Ex(ttl).Build()).Error()
	if valkeylib.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Del removes keys, ignoring missing ones.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Do(ctx, c.inner.B().Del().Key(keys...).Build()).Error()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.inner.Do(ctx, c.inner.B().Publish().Channel(channel).Message(string(payload)).Build()).Error()
}

// Subscribe blocks, calling fn for each message on channel, until ctx is
// cancelled or the connection fails.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	return c.inner.Receive(ctx, c.inner.B().Subscribe().Channel(channel).Build(), func(m valkeylib.PubSubMessage) {
		fn([]byte(m.Message))
	})
}
