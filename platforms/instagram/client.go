// Package instagram implements the Instagram Graph API platform client.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL        = "https://graph.facebook.com"
	DefaultRefreshBaseURL = "https://graph.instagram.com"
	DefaultVersion        = "v21.0"
	DefaultTimeout        = 20 * time.Second
	DefaultRateLimit      = 5.0

	containerFinished = "FINISHED"
	maxMediaScanned   = 25
)

type Config struct {
	BaseURL           string
	Version           string
	RefreshBaseURL    string
	PublishGrace      time.Duration
	StatusPollEvery   time.Duration
	// MaxStatusPolls defaults to what fits in ActionTimeout after the grace
	// sleep, or 20 when no timeout is set.
	MaxStatusPolls    int
	ActionTimeout     time.Duration
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

// Client talks to the Graph API on behalf of connected Instagram accounts.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.RefreshBaseURL == "" {
		cfg.RefreshBaseURL = DefaultRefreshBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimit
	}
	if cfg.StatusPollEvery <= 0 {
		cfg.StatusPollEvery = 3 * time.Second
	}
	if cfg.MaxStatusPolls <= 0 {
		cfg.MaxStatusPolls = statusPollBudget(cfg)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.RefreshBaseURL = strings.TrimRight(cfg.RefreshBaseURL, "/")

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type idResponse struct {
	ID string `json:"id"`
}

// Publish creates a media container, waits for it to be ready and publishes it.
func (c *Client) Publish(ctx context.Context, acc domain.ConnectedAccount, req domain.PublishRequest) (domain.PublishResult, error) {
	params := url.Values{}
	params.Set("caption", req.Caption)
	if req.MediaType.IsVideo() {
		params.Set("media_type", "REELS")
		params.Set("video_url", req.MediaURL)
	} else {
		params.Set("image_url", req.MediaURL)
	}

	var container idResponse
	if err := c.do(ctx, http.MethodPost, c.graphURL(acc.PlatformUserID, "media"), acc.AccessToken, params, nil, &container); err != nil {
		return domain.PublishResult{}, domain.Wrapf(err, "create container")
	}
	if container.ID == "" {
		return domain.PublishResult{}, domain.NewPlatformAPIError("create container: empty id")
	}

	if err := c.sleep(ctx, c.cfg.PublishGrace); err != nil {
		return domain.PublishResult{}, err
	}
	if req.MediaType.IsVideo() {
		if err := c.waitContainer(ctx, acc, container.ID); err != nil {
			return domain.PublishResult{}, err
		}
	}

	publishParams := url.Values{}
	publishParams.Set("creation_id", container.ID)
	var published idResponse
	if err := c.do(ctx, http.MethodPost, c.graphURL(acc.PlatformUserID, "media_publish"), acc.AccessToken, publishParams, nil, &published); err != nil {
		return domain.PublishResult{}, domain.Wrapf(err, "publish container %s", container.ID)
	}

	res := domain.PublishResult{MediaID: published.ID}
	var link struct {
		Permalink string `json:"permalink"`
	}
	if err := c.do(ctx, http.MethodGet, c.graphURL(published.ID), acc.AccessToken, url.Values{"fields": {"permalink"}}, nil, &link); err == nil {
		res.Permalink = link.Permalink
	}
	logrus.Infof("[INSTAGRAM] Published media %s for %s", res.MediaID, acc.PlatformUserID)
	return res, nil
}

func (c *Client) waitContainer(ctx context.Context, acc domain.ConnectedAccount, containerID string) error {
	for i := 0; i < c.cfg.MaxStatusPolls; i++ {
		var status struct {
			StatusCode string `json:"status_code"`
		}
		if err := c.do(ctx, http.MethodGet, c.graphURL(containerID), acc.AccessToken, url.Values{"fields": {"status_code"}}, nil, &status); err != nil {
			return domain.Wrapf(err, "container status")
		}
		switch status.StatusCode {
		case containerFinished:
			return nil
		case "ERROR", "EXPIRED":
			return domain.NewPlatformAPIError(fmt.Sprintf("container %s processing %s", containerID, strings.ToLower(status.StatusCode)))
		}
		if err := c.sleep(ctx, c.cfg.StatusPollEvery); err != nil {
			return err
		}
	}
	return domain.NewTimeoutError(fmt.Sprintf("container %s not ready after %d checks", containerID, c.cfg.MaxStatusPolls))
}

// statusPollBudget leaves one poll interval for the media_publish call.
func statusPollBudget(cfg Config) int {
	if cfg.ActionTimeout <= 0 {
		return 20
	}
	n := int((cfg.ActionTimeout-cfg.PublishGrace)/cfg.StatusPollEvery) - 1
	if n < 1 {
		return 1
	}
	return n
}

func (c *Client) Reply(ctx context.Context, acc domain.ConnectedAccount, parentID, text string) (string, error) {
	var out idResponse
	if err := c.do(ctx, http.MethodPost, c.graphURL(parentID, "replies"), acc.AccessToken, url.Values{"message": {text}}, nil, &out); err != nil {
		return "", domain.Wrapf(err, "reply to %s", parentID)
	}
	return out.ID, nil
}

type messageRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

func (c *Client) SendDirectMessage(ctx context.Context, acc domain.ConnectedAccount, recipientID, text string) (string, error) {
	var body messageRequest
	body.Recipient.ID = recipientID
	body.Message.Text = text

	var out struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := c.do(ctx, http.MethodPost, c.graphURL(acc.PlatformUserID, "messages"), acc.AccessToken, nil, body, &out); err != nil {
		return "", domain.Wrapf(err, "message %s", recipientID)
	}
	return out.MessageID, nil
}

func (c *Client) Moderate(ctx context.Context, acc domain.ConnectedAccount, contentID string, action domain.ModerationAction) error {
	var out struct {
		Success bool `json:"success"`
	}
	var err error
	switch action {
	case domain.ModerationHide:
		err = c.do(ctx, http.MethodPost, c.graphURL(contentID), acc.AccessToken, url.Values{"hide": {"true"}}, nil, &out)
	case domain.ModerationDelete:
		err = c.do(ctx, http.MethodDelete, c.graphURL(contentID), acc.AccessToken, nil, nil, &out)
	default:
		return domain.NewValidationError("unknown moderation action " + string(action))
	}
	if err != nil {
		return domain.Wrapf(err, "%s comment %s", action, contentID)
	}
	if !out.Success {
		return domain.NewPlatformAPIError(fmt.Sprintf("%s comment %s was not acknowledged", action, contentID))
	}
	return nil
}

type commentNode struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	From      *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

// FetchNewComments scans the latest media of the account and returns comments
// whose ids are not in knownIDs.
func (c *Client) FetchNewComments(ctx context.Context, acc domain.ConnectedAccount, knownIDs []string) ([]domain.InboundComment, error) {
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	var media struct {
		Data []idResponse `json:"data"`
	}
	params := url.Values{"fields": {"id"}, "limit": {fmt.Sprint(maxMediaScanned)}}
	if err := c.do(ctx, http.MethodGet, c.graphURL(acc.PlatformUserID, "media"), acc.AccessToken, params, nil, &media); err != nil {
		return nil, domain.Wrapf(err, "list media")
	}

	var out []domain.InboundComment
	for _, m := range media.Data {
		var comments struct {
			Data []commentNode `json:"data"`
		}
		cp := url.Values{"fields": {"id,text,timestamp,username,from{id,username}"}}
		if err := c.do(ctx, http.MethodGet, c.graphURL(m.ID, "comments"), acc.AccessToken, cp, nil, &comments); err != nil {
			return out, domain.Wrapf(err, "list comments of %s", m.ID)
		}
		for _, n := range comments.Data {
			if _, seen := known[n.ID]; seen {
				continue
			}
			ic := domain.InboundComment{
				ID:             n.ID,
				MediaID:        m.ID,
				Text:           n.Text,
				AuthorUsername: n.Username,
				CreatedAt:      parseGraphTime(n.Timestamp),
			}
			if n.From != nil {
				ic.AuthorID = n.From.ID
				if ic.AuthorUsername == "" {
					ic.AuthorUsername = n.From.Username
				}
			}
			out = append(out, ic)
		}
	}
	return out, nil
}

func parseGraphTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (c *Client) graphURL(parts ...string) string {
	return c.cfg.BaseURL + "/" + c.cfg.Version + "/" + strings.Join(parts, "/")
}

// do sends one Graph request. Query parameters are used for form style calls
// and body, when set, is sent as JSON.
func (c *Client) do(ctx context.Context, method, endpoint, token string, params url.Values, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	reqURL := endpoint + "?" + params.Encode()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return domain.NewValidationError(err.Error())
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return domain.NewValidationError(err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewPlatformAPIError(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewPlatformAPIError("read response: " + err.Error())
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseGraphError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewPlatformAPIError("decode response: " + err.Error())
	}
	return nil
}
