package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrActionNotFound   = errors.New("scheduled action not found")
	ErrAccountNotFound  = errors.New("connected account not found")
	ErrSettingNotFound  = errors.New("auto-reply setting not found")
	ErrPersonaNotFound  = errors.New("persona not found")
	ErrLogNotFound      = errors.New("auto-reply log entry not found")
	ErrNotCancellable   = errors.New("only pending actions can be cancelled")
	ErrNotRetryable     = errors.New("only failed actions can be retried")
	ErrNotPending       = errors.New("action is no longer pending")
	ErrNotInFlight      = errors.New("action is not in flight")
	ErrDuplicateSource  = errors.New("source content already handled")
	ErrUnsupportedRoute = errors.New("no platform client registered")
)

// ErrorKind is the stored taxonomy code of a dispatch failure.
type ErrorKind string

const (
	ErrKindAccountNotConnected ErrorKind = "account_not_connected"
	ErrKindTokenExpired        ErrorKind = "token_expired"
	ErrKindPlatformAPI         ErrorKind = "platform_api_error"
	ErrKindTimeout             ErrorKind = "timeout"
	ErrKindValidation          ErrorKind = "validation_error"
	ErrKindUnknown             ErrorKind = "unknown"
)

// DispatchError is the typed failure of a platform call or a pre-dispatch check.
type DispatchError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case ErrKindAccountNotConnected:
		return "account not connected"
	case ErrKindTokenExpired:
		return prefixed("token expired", e.Reason)
	case ErrKindPlatformAPI:
		return prefixed("platform api error", e.Reason)
	case ErrKindTimeout:
		return prefixed("timeout", e.Reason)
	case ErrKindValidation:
		return prefixed("validation error", e.Reason)
	}
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *DispatchError) Unwrap() error { return e.Err }

func prefixed(prefix, reason string) string {
	if reason == "" {
		return prefix
	}
	return prefix + ": " + reason
}

func NewAccountNotConnectedError() *DispatchError {
	return &DispatchError{Kind: ErrKindAccountNotConnected}
}

func NewTokenExpiredError(reason string) *DispatchError {
	return &DispatchError{Kind: ErrKindTokenExpired, Reason: reason}
}

func NewPlatformAPIError(reason string) *DispatchError {
	return &DispatchError{Kind: ErrKindPlatformAPI, Reason: reason}
}

func NewTimeoutError(reason string) *DispatchError {
	return &DispatchError{Kind: ErrKindTimeout, Reason: reason}
}

func NewValidationError(reason string) *DispatchError {
	return &DispatchError{Kind: ErrKindValidation, Reason: reason}
}

func NewUnknownError(err error) *DispatchError {
	return &DispatchError{Kind: ErrKindUnknown, Err: err}
}

// Classify maps any error onto the dispatch taxonomy.
func Classify(err error) *DispatchError {
	if err == nil {
		return nil
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DispatchError{Kind: ErrKindTimeout, Reason: "platform call exceeded its deadline", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &DispatchError{Kind: ErrKindTimeout, Reason: "dispatch cancelled", Err: err}
	}
	return &DispatchError{Kind: ErrKindUnknown, Reason: err.Error(), Err: err}
}

// KindOf returns the taxonomy code of err, or an empty kind for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Wrapf annotates a DispatchError reason without changing its kind.
func Wrapf(err error, format string, args ...any) error {
	de := Classify(err)
	return &DispatchError{Kind: de.Kind, Reason: prefixed(fmt.Sprintf(format, args...), de.Reason), Err: de.Err}
}
