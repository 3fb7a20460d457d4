package domain

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type ActionKind string

const (
	KindPublishPost     ActionKind = "PUBLISH_POST"
	KindCommentReply    ActionKind = "COMMENT_REPLY"
	KindDMReply         ActionKind = "DM_REPLY"
	KindModerateComment ActionKind = "MODERATE_COMMENT"
)

// SuccessStatus is the terminal status recorded when an action of this kind succeeds.
func (k ActionKind) SuccessStatus() ActionStatus {
	if k == KindPublishPost {
		return StatusPublished
	}
	return StatusSent
}

type ActionStatus string

const (
	StatusPending   ActionStatus = "PENDING"
	StatusInFlight  ActionStatus = "IN_FLIGHT"
	StatusPublished ActionStatus = "PUBLISHED"
	StatusSent      ActionStatus = "SENT"
	StatusFailed    ActionStatus = "FAILED"
	StatusCancelled ActionStatus = "CANCELLED"
)

func (s ActionStatus) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
	MediaReels MediaType = "REELS"
)

func (m MediaType) IsVideo() bool {
	return m == MediaVideo || m == MediaReels
}

type ModerationAction string

const (
	ModerationHide   ModerationAction = "hide"
	ModerationDelete ModerationAction = "delete"
)

// ActionPayload carries the kind-specific data of a ScheduledAction.
// It is persisted as JSON.
type ActionPayload struct {
	// PUBLISH_POST
	Caption   string    `json:"caption,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	MediaType MediaType `json:"media_type,omitempty"`
	Title     string    `json:"title,omitempty"`

	// COMMENT_REPLY / DM_REPLY
	SourceID    string `json:"source_id,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text,omitempty"`

	// MODERATE_COMMENT
	ContentID  string           `json:"content_id,omitempty"`
	Moderation ModerationAction `json:"moderation,omitempty"`
}

type ScheduledAction struct {
	ID          string        `json:"id"`
	AccountRef  string        `json:"account_ref"`
	Kind        ActionKind    `json:"kind"`
	Payload     ActionPayload `json:"payload"`
	DueAt       time.Time     `json:"due_at"`
	Status      ActionStatus  `json:"status"`
	ResultRef   string        `json:"result_ref,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	ClaimedAt   *time.Time    `json:"claimed_at,omitempty"`
	RetryOf     string        `json:"retry_of,omitempty"`
	LogEntryID  string        `json:"log_entry_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsDue reports whether the action is eligible for dispatch at now.
func (a ScheduledAction) IsDue(now time.Time) bool {
	return a.Status == StatusPending && !a.DueAt.After(now)
}

// Validate checks the payload against the requirements of the action kind.
// A failure is reported as a validation DispatchError.
func (a ScheduledAction) Validate() error {
	p := a.Payload
	var err error
	switch a.Kind {
	case KindPublishPost:
		err = validation.ValidateStruct(&p,
			validation.Field(&p.MediaURL, validation.Required, is.URL),
			validation.Field(&p.MediaType, validation.Required, validation.In(MediaImage, MediaVideo, MediaReels)),
			validation.Field(&p.Caption, validation.Length(0, 2200)),
		)
	case KindCommentReply:
		err = validation.ValidateStruct(&p,
			validation.Field(&p.ParentID, validation.Required),
			validation.Field(&p.Text, validation.Required),
		)
	case KindDMReply:
		err = validation.ValidateStruct(&p,
			validation.Field(&p.RecipientID, validation.Required),
			validation.Field(&p.Text, validation.Required),
		)
	case KindModerateComment:
		err = validation.ValidateStruct(&p,
			validation.Field(&p.ContentID, validation.Required),
			validation.Field(&p.Moderation, validation.Required, validation.In(ModerationHide, ModerationDelete)),
		)
	default:
		return NewValidationError("unknown action kind " + string(a.Kind))
	}
	if err != nil {
		return NewValidationError(err.Error())
	}
	return nil
}

// Outcome is the result of one dispatch as written back to the queue.
type Outcome struct {
	Status      ActionStatus
	ResultRef   string
	ErrorDetail string
	ErrorKind   ErrorKind
}

func SucceededOutcome(kind ActionKind, resultRef string) Outcome {
	return Outcome{Status: kind.SuccessStatus(), ResultRef: resultRef}
}

func FailedOutcome(err error) Outcome {
	de := Classify(err)
	return Outcome{Status: StatusFailed, ErrorDetail: de.Error(), ErrorKind: de.Kind}
}
