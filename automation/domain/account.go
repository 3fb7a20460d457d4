package domain

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
)

// ConnectedAccount is a platform account linked to a local user.
// At most one record exists per (UserRef, Platform).
type ConnectedAccount struct {
	ID             string     `json:"id"`
	UserRef        string     `json:"user_ref"`
	Platform       Platform   `json:"platform"`
	PlatformUserID string     `json:"platform_user_id"`
	Username       string     `json:"username,omitempty"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiry    *time.Time `json:"token_expiry,omitempty"`
	IsConnected    bool       `json:"is_connected"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TokenExpired reports whether the access token is already past its expiry.
func (a ConnectedAccount) TokenExpired(now time.Time) bool {
	return a.TokenExpiry != nil && !a.TokenExpiry.After(now)
}

// TokenExpiresWithin reports whether the access token expires before now+window.
func (a ConnectedAccount) TokenExpiresWithin(now time.Time, window time.Duration) bool {
	return a.TokenExpiry != nil && a.TokenExpiry.Before(now.Add(window))
}

// TokenSet is the result of a token refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}
