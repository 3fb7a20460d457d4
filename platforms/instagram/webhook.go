package instagram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
)

const signaturePrefix = "sha256="

// WebhookPayload is the body Meta posts for subscribed Instagram fields.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string             `json:"id"`
	Time      int64              `json:"time"`
	Changes   []WebhookChange    `json:"changes"`
	Messaging []WebhookMessaging `json:"messaging"`
}

type WebhookChange struct {
	Field string `json:"field"`
	Value struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		ParentID string `json:"parent_id"`
		From     struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Media struct {
			ID string `json:"id"`
		} `json:"media"`
	} `json:"value"`
}

type WebhookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		Mid    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message"`
}

// SignBody returns the X-Hub-Signature-256 header value for body.
func SignBody(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the X-Hub-Signature-256 header against body.
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(header), []byte(SignBody(appSecret, body)))
}

// ParseWebhook turns a webhook body into inbound events. Echoes of the
// account's own messages and non-text messages are dropped.
func ParseWebhook(body []byte, receivedAt time.Time) ([]domain.InboundEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if payload.Object != "instagram" {
		return nil, fmt.Errorf("unexpected webhook object %q", payload.Object)
	}

	var events []domain.InboundEvent
	for _, entry := range payload.Entry {
		for _, ch := range entry.Changes {
			if ch.Field != "comments" || ch.Value.ID == "" {
				continue
			}
			events = append(events, domain.InboundEvent{
				Platform:       domain.PlatformInstagram,
				RecipientID:    entry.ID,
				Surface:        domain.SurfaceComments,
				SourceID:       ch.Value.ID,
				MediaID:        ch.Value.Media.ID,
				AuthorID:       ch.Value.From.ID,
				AuthorUsername: ch.Value.From.Username,
				Text:           ch.Value.Text,
				ReceivedAt:     receivedAt,
			})
		}
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.IsEcho || m.Message.Mid == "" || m.Message.Text == "" {
				continue
			}
			events = append(events, domain.InboundEvent{
				Platform:    domain.PlatformInstagram,
				RecipientID: m.Recipient.ID,
				Surface:     domain.SurfaceDMs,
				SourceID:    m.Message.Mid,
				AuthorID:    m.Sender.ID,
				Text:        m.Message.Text,
				ReceivedAt:  receivedAt,
			})
		}
	}
	return events, nil
}
