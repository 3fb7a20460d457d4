package domain

import (
	"errors"
	"time"
)

type Surface string

const (
	SurfaceComments Surface = "comments"
	SurfaceDMs      Surface = "dms"
)

type ReplyMode string

const (
	ModeReplyOnly        ReplyMode = "reply_only"
	ModeReplyAndModerate ReplyMode = "reply_and_moderate"
	ModeAIPersona        ReplyMode = "ai_persona"
)

// DelayPolicy is either a fixed delay or a uniform random window, in seconds.
// FixedSeconds takes precedence when set.
type DelayPolicy struct {
	FixedSeconds *int `json:"fixed_seconds,omitempty"`
	MinSeconds   int  `json:"min_seconds"`
	MaxSeconds   int  `json:"max_seconds"`
}

func FixedDelay(seconds int) DelayPolicy {
	return DelayPolicy{FixedSeconds: &seconds}
}

func RandomDelay(minSeconds, maxSeconds int) DelayPolicy {
	return DelayPolicy{MinSeconds: minSeconds, MaxSeconds: maxSeconds}
}

func (p DelayPolicy) IsFixed() bool { return p.FixedSeconds != nil }

func (p DelayPolicy) Validate() error {
	if p.FixedSeconds != nil {
		if *p.FixedSeconds < 0 {
			return errors.New("fixed delay must not be negative")
		}
		return nil
	}
	if p.MinSeconds < 0 || p.MaxSeconds < 0 {
		return errors.New("delay window must not be negative")
	}
	if p.MaxSeconds < p.MinSeconds {
		return errors.New("delay window max must be greater than or equal to min")
	}
	return nil
}

// AutoReplySetting is configured per account and per surface.
// An empty StaticMessage delegates reply text to the AI text service.
// A non-empty HideNotice turns a moderation hit on a comment into REPLY_AND_HIDE.
type AutoReplySetting struct {
	AccountRef    string      `json:"account_ref"`
	Surface       Surface     `json:"surface"`
	Enabled       bool        `json:"enabled"`
	Delay         DelayPolicy `json:"delay"`
	StaticMessage string      `json:"static_message,omitempty"`
	Mode          ReplyMode   `json:"mode"`
	HideNotice    string      `json:"hide_notice,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type DecisionAction string

const (
	DecisionReply        DecisionAction = "REPLY"
	DecisionHide         DecisionAction = "HIDE"
	DecisionSkip         DecisionAction = "SKIP"
	DecisionReplyAndHide DecisionAction = "REPLY_AND_HIDE"
)

func (d DecisionAction) Replies() bool {
	return d == DecisionReply || d == DecisionReplyAndHide
}

func (d DecisionAction) Hides() bool {
	return d == DecisionHide || d == DecisionReplyAndHide
}

type Decision struct {
	Action    DecisionAction `json:"action"`
	ReplyText string         `json:"reply_text,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Verdict   *Verdict       `json:"verdict,omitempty"`
}

// Verdict is the output of content classification.
type Verdict struct {
	Flagged  bool   `json:"flagged"`
	Category string `json:"category"`
	Reason   string `json:"reason,omitempty"`
}

const (
	CategoryClean = "clean"
	CategorySpam  = "spam"
	CategoryToxic = "toxic"
)

type LogStatus string

const (
	LogPending LogStatus = "pending"
	LogReplied LogStatus = "replied"
	LogHidden  LogStatus = "hidden"
	LogSkipped LogStatus = "skipped"
	LogFailed  LogStatus = "failed"
)

func (s LogStatus) IsTerminal() bool {
	return s != LogPending
}

// AutoReplyLogEntry records one decision and its outcome.
// After a terminal status only Error may grow.
type AutoReplyLogEntry struct {
	ID             string         `json:"id"`
	AccountRef     string         `json:"account_ref"`
	Surface        Surface        `json:"surface"`
	SourceID       string         `json:"source_id"`
	SourceAuthorID string         `json:"source_author_id"`
	SourceText     string         `json:"source_text"`
	Decision       DecisionAction `json:"decision"`
	ReplyText      string         `json:"reply_text,omitempty"`
	Status         LogStatus      `json:"status"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	RepliedAt      *time.Time     `json:"replied_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// LogPart names which linked action reports into a log entry.
type LogPart string

const (
	LogPartReply LogPart = "reply"
	LogPartHide  LogPart = "hide"
)

// LogUpdate is the outcome written back to a log entry. With Part set, an
// entry whose decision needs both a reply and a hide stays pending until
// both parts have reported.
type LogUpdate struct {
	Part      LogPart
	Status    LogStatus
	RepliedAt *time.Time
	Error     string
}

// Persona is a creator's communication style used by ai_persona replies.
type Persona struct {
	AccountRef  string    `json:"account_ref"`
	DisplayName string    `json:"display_name"`
	Tone        string    `json:"tone"`
	StyleNotes  string    `json:"style_notes,omitempty"`
	SignOff     string    `json:"sign_off,omitempty"`
	Language    string    `json:"language,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InboundEvent is a new comment or direct message observed by a webhook or a poll.
// AccountRef may be empty when only the platform recipient id is known.
type InboundEvent struct {
	AccountRef     string    `json:"account_ref,omitempty"`
	Platform       Platform  `json:"platform"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	Surface        Surface   `json:"surface"`
	SourceID       string    `json:"source_id"`
	MediaID        string    `json:"media_id,omitempty"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"received_at"`
}

// InboundComment is a comment returned by a platform poll.
type InboundComment struct {
	ID             string    `json:"id"`
	ParentID       string    `json:"parent_id,omitempty"`
	MediaID        string    `json:"media_id,omitempty"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
