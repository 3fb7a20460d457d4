package domain

import "time"

type SchedulePostRequest struct {
	AccountID   string    `json:"account_id"`
	Caption     string    `json:"caption"`
	MediaURL    string    `json:"media_url"`
	MediaType   MediaType `json:"media_type"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ConnectAccountRequest struct {
	UserRef        string     `json:"user_ref"`
	Platform       Platform   `json:"platform"`
	PlatformUserID string     `json:"platform_user_id"`
	Username       string     `json:"username"`
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token"`
	TokenExpiry    *time.Time `json:"token_expiry"`
}

type AutoReplySettingRequest struct {
	AccountID     string    `json:"account_id"`
	Surface       Surface   `json:"surface"`
	Enabled       bool      `json:"enabled"`
	Mode          ReplyMode `json:"mode"`
	StaticMessage string    `json:"static_message"`
	HideNotice    string    `json:"hide_notice"`
	FixedSeconds  *int      `json:"fixed_seconds"`
	MinSeconds    int       `json:"min_seconds"`
	MaxSeconds    int       `json:"max_seconds"`
}

func (r AutoReplySettingRequest) DelayPolicy() DelayPolicy {
	return DelayPolicy{FixedSeconds: r.FixedSeconds, MinSeconds: r.MinSeconds, MaxSeconds: r.MaxSeconds}
}

type PersonaRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Tone        string `json:"tone"`
	StyleNotes  string `json:"style_notes"`
	SignOff     string `json:"sign_off"`
	Language    string `json:"language"`
}
