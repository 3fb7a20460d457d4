// Package youtube implements the YouTube Data API platform client.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	DefaultTimeout   = 2 * time.Minute
	DefaultRateLimit = 2.0
	DefaultPrivacy   = "public"

	maxTitleLen   = 100
	maxThreads    = 50
	watchURLShape = "https://www.youtube.com/watch?v=%s"
)

var Scopes = []string{yt.YoutubeUploadScope, yt.YoutubeForceSslScope}

type Config struct {
	ClientID     string
	ClientSecret string
	// Endpoint overrides the API root, for example in tests.
	Endpoint string
	// TokenURL overrides the Google token endpoint.
	TokenURL          string
	PrivacyStatus     string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

// Client performs YouTube calls with the account's OAuth access token.
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.PrivacyStatus == "" {
		cfg.PrivacyStatus = DefaultPrivacy
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimit
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultTimeout
	}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// service builds a Data API service authorized with the stored access token.
// Refreshing is left to the token manager so every refresh is persisted.
func (c *Client) service(ctx context.Context, acc domain.ConnectedAccount) (*yt.Service, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: acc.AccessToken, TokenType: "Bearer"})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(c.cfg.Endpoint, "/")+"/"))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, domain.NewValidationError("youtube service: " + err.Error())
	}
	return svc, nil
}

// Publish downloads the media and uploads it as a new video.
func (c *Client) Publish(ctx context.Context, acc domain.ConnectedAccount, req domain.PublishRequest) (domain.PublishResult, error) {
	if !req.MediaType.IsVideo() {
		return domain.PublishResult{}, domain.NewValidationError("youtube only accepts video media")
	}

	media, err := c.openMedia(ctx, req.MediaURL)
	if err != nil {
		return domain.PublishResult{}, err
	}
	defer media.Close()

	svc, err := c.service(ctx, acc)
	if err != nil {
		return domain.PublishResult{}, err
	}
	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       videoTitle(req),
			Description: req.Caption,
		},
		Status: &yt.VideoStatus{PrivacyStatus: c.cfg.PrivacyStatus},
	}
	out, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
	if err != nil {
		return domain.PublishResult{}, domain.Wrapf(mapError(ctx, err), "upload video")
	}
	if out.Id == "" {
		return domain.PublishResult{}, domain.NewPlatformAPIError("upload video: empty id")
	}

	logrus.Infof("[YOUTUBE] Uploaded video %s for channel %s", out.Id, acc.PlatformUserID)
	return domain.PublishResult{MediaID: out.Id, Permalink: fmt.Sprintf(watchURLShape, out.Id)}, nil
}

func videoTitle(req domain.PublishRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(req.Caption, "\n", 2)[0])
	}
	if title == "" {
		title = "Untitled"
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}

func (c *Client) openMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, domain.NewValidationError("media url: " + err.Error())
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewPlatformAPIError("download media: " + err.Error())
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, domain.NewPlatformAPIError(fmt.Sprintf("download media: http %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func (c *Client) Reply(ctx context.Context, acc domain.ConnectedAccount, parentID, text string) (string, error) {
	svc, err := c.service(ctx, acc)
	if err != nil {
		return "", err
	}
	comment := &yt.Comment{Snippet: &yt.CommentSnippet{ParentId: parentID, TextOriginal: text}}
	out, err := svc.Comments.Insert([]string{"snippet"}, comment).Context(ctx).Do()
	if err != nil {
		return "", domain.Wrapf(mapError(ctx, err), "reply to %s", parentID)
	}
	return out.Id, nil
}

func (c *Client) SendDirectMessage(context.Context, domain.ConnectedAccount, string, string) (string, error) {
	return "", domain.NewValidationError("youtube has no direct messages")
}

// Moderate rejects (hides) or deletes a comment.
func (c *Client) Moderate(ctx context.Context, acc domain.ConnectedAccount, contentID string, action domain.ModerationAction) error {
	svc, err := c.service(ctx, acc)
	if err != nil {
		return err
	}
	switch action {
	case domain.ModerationHide:
		err = svc.Comments.SetModerationStatus([]string{contentID}, "rejected").Context(ctx).Do()
	case domain.ModerationDelete:
		err = svc.Comments.Delete(contentID).Context(ctx).Do()
	default:
		return domain.NewValidationError("unknown moderation action " + string(action))
	}
	if err != nil {
		return domain.Wrapf(mapError(ctx, err), "%s comment %s", action, contentID)
	}
	return nil
}

// FetchNewComments lists the latest top-level comments across the channel's videos.
func (c *Client) FetchNewComments(ctx context.Context, acc domain.ConnectedAccount, knownIDs []string) ([]domain.InboundComment, error) {
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	svc, err := c.service(ctx, acc)
	if err != nil {
		return nil, err
	}
	resp, err := svc.CommentThreads.List([]string{"snippet"}).
		AllThreadsRelatedToChannelId(acc.PlatformUserID).
		Order("time").
		TextFormat("plainText").
		MaxResults(maxThreads).
		Context(ctx).Do()
	if err != nil {
		return nil, domain.Wrapf(mapError(ctx, err), "list comment threads")
	}

	var out []domain.InboundComment
	for _, thread := range resp.Items {
		if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
			continue
		}
		top := thread.Snippet.TopLevelComment
		if _, seen := known[top.Id]; seen || top.Snippet == nil {
			continue
		}
		ic := domain.InboundComment{
			ID:             top.Id,
			MediaID:        thread.Snippet.VideoId,
			Text:           top.Snippet.TextOriginal,
			AuthorUsername: top.Snippet.AuthorDisplayName,
		}
		if ic.Text == "" {
			ic.Text = top.Snippet.TextDisplay
		}
		if top.Snippet.AuthorChannelId != nil {
			ic.AuthorID = top.Snippet.AuthorChannelId.Value
		}
		if t, err := time.Parse(time.RFC3339, top.Snippet.PublishedAt); err == nil {
			ic.CreatedAt = t.UTC()
		}
		out = append(out, ic)
	}
	return out, nil
}
