package domain

import (
	"context"
	"time"
)

// QueueStore is the durable source of truth for scheduled actions.
type QueueStore interface {
	Enqueue(ctx context.Context, action *ScheduledAction) error
	// FindDue returns up to limit PENDING actions with DueAt <= now, oldest due first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]ScheduledAction, error)
	// Claim moves a PENDING action to IN_FLIGHT and reports whether this caller won it.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	// UpdateStatus records the outcome of an IN_FLIGHT action.
	UpdateStatus(ctx context.Context, id string, outcome Outcome) error
	// Cancel moves a PENDING action to CANCELLED; any other status yields ErrNotCancellable.
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (ScheduledAction, error)
	ListByUser(ctx context.Context, userRef string) ([]ScheduledAction, error)
	// ResetDue moves the due time of a PENDING action.
	ResetDue(ctx context.Context, id string, dueAt time.Time) error
	// SweepStale fails IN_FLIGHT actions claimed before the cutoff.
	SweepStale(ctx context.Context, claimedBefore time.Time, detail string) (int64, error)
}

type AccountStore interface {
	// Connect inserts the account or updates the existing (UserRef, Platform) record in place.
	Connect(ctx context.Context, account *ConnectedAccount) error
	Get(ctx context.Context, id string) (ConnectedAccount, error)
	GetByPlatformUser(ctx context.Context, platform Platform, platformUserID string) (ConnectedAccount, error)
	ListConnected(ctx context.Context) ([]ConnectedAccount, error)
	UpdateToken(ctx context.Context, id string, tokens TokenSet) error
	Disconnect(ctx context.Context, id string) error
}

type PersonaLookup interface {
	GetPersona(ctx context.Context, accountRef string) (Persona, error)
}

type AutoReplyLogWriter interface {
	UpdateLog(ctx context.Context, id string, update LogUpdate) error
}

type AutoReplyStore interface {
	PersonaLookup
	AutoReplyLogWriter
	GetSetting(ctx context.Context, accountRef string, surface Surface) (AutoReplySetting, error)
	SaveSetting(ctx context.Context, setting AutoReplySetting) error
	ListEnabledSettings(ctx context.Context, surface Surface) ([]AutoReplySetting, error)
	SavePersona(ctx context.Context, persona Persona) error
	// CreateLog fails with ErrDuplicateSource when the source was already logged.
	CreateLog(ctx context.Context, entry *AutoReplyLogEntry) error
	DeleteLog(ctx context.Context, id string) error
	GetLog(ctx context.Context, id string) (AutoReplyLogEntry, error)
	HasSource(ctx context.Context, accountRef string, surface Surface, sourceID string) (bool, error)
	RecentSourceIDs(ctx context.Context, accountRef string, surface Surface, limit int) ([]string, error)
	ListLogs(ctx context.Context, accountRef string, limit int) ([]AutoReplyLogEntry, error)
}

type PublishRequest struct {
	MediaURL  string
	Caption   string
	MediaType MediaType
	Title     string
}

type PublishResult struct {
	MediaID   string
	Permalink string
}

// PlatformClient executes authenticated calls against one social platform.
// Failures are returned as *DispatchError.
type PlatformClient interface {
	Publish(ctx context.Context, account ConnectedAccount, req PublishRequest) (PublishResult, error)
	Reply(ctx context.Context, account ConnectedAccount, parentID, text string) (string, error)
	SendDirectMessage(ctx context.Context, account ConnectedAccount, recipientID, text string) (string, error)
	Moderate(ctx context.Context, account ConnectedAccount, contentID string, action ModerationAction) error
	FetchNewComments(ctx context.Context, account ConnectedAccount, knownIDs []string) ([]InboundComment, error)
}

type TokenRefresher interface {
	Refresh(ctx context.Context, account ConnectedAccount) (TokenSet, error)
}

type ReplyPrompt struct {
	Surface        Surface
	InboundText    string
	AuthorUsername string
	Persona        *Persona
}

// TextService generates reply text. It is treated as a black box with a timeout.
type TextService interface {
	GenerateReply(ctx context.Context, prompt ReplyPrompt) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Guard is the in-process fast path for inbound and dispatch deduplication.
// It is never authoritative; persisted state is always re-checked.
type Guard interface {
	// AdmitSource returns true exactly once per source key.
	AdmitSource(ctx context.Context, key string) (bool, error)
	ForgetSource(ctx context.Context, key string) error
	// Claim is an atomic check-and-set on an action id.
	Claim(ctx context.Context, actionID string) (bool, error)
	Release(ctx context.Context, actionID string) error
}

// ActionEvent is published after an action reaches a terminal status.
type ActionEvent struct {
	ActionID    string       `json:"action_id"`
	AccountRef  string       `json:"account_ref"`
	Kind        ActionKind   `json:"kind"`
	Status      ActionStatus `json:"status"`
	ResultRef   string       `json:"result_ref,omitempty"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	At          time.Time    `json:"at"`
}

// ActionNotifier receives dispatch outcomes. Implementations must not block.
type ActionNotifier interface {
	NotifyAction(ev ActionEvent)
}
