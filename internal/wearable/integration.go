package wearable

import (
	"time"

	"golang.org/x/oauth2"
)

type Integration struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Provider       Provider   `json:"provider"`
	ProviderUserID string     `json:"providerUserId,omitempty"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiry    time.Time  `json:"-"`
	Scopes         []string   `json:"scopes,omitempty"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	Active         bool       `json:"active"`
}

func (i *Integration) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  i.AccessToken,
		RefreshToken: i.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       i.TokenExpiry,
	}
}

// ExpiresWithin reports whether the access token expires before now+buffer.
// A zero expiry is treated as non-expiring.
func (i *Integration) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if i.TokenExpiry.IsZero() {
		return false
	}
	return !now.Add(buffer).Before(i.TokenExpiry)
}

type SyncOutcome string

const (
	SyncStarted      SyncOutcome = "started"
	SyncSuccess      SyncOutcome = "success"
	SyncError        SyncOutcome = "error"
	SyncRateLimited  SyncOutcome = "rate_limited"
	SyncNotConnected SyncOutcome = "not_connected"
)

type SyncStatus struct {
	UserID        string      `json:"-"`
	Provider      Provider    `json:"provider"`
	DataType      DataType    `json:"dataType"`
	Status        SyncOutcome `json:"status"`
	LastAttemptAt *time.Time  `json:"lastAttemptAt,omitempty"`
	LastSuccessAt *time.Time  `json:"lastSuccessAt,omitempty"`
	LastError     *string     `json:"lastError,omitempty"`
	RecordCount   int         `json:"recordCount"`
	// HighWaterMark is the end of the last successfully synced window.
	HighWaterMark *time.Time `json:"highWaterMark,omitempty"`
	RetryAfter    *time.Time `json:"retryAfter,omitempty"`
}

type TrainerClient struct {
	TrainerID string     `json:"trainerId"`
	ClientID  string     `json:"clientId"`
	Active    bool       `json:"active"`
	GrantedAt time.Time  `json:"grantedAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}
