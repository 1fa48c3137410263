package session

// Record is the cache-side state of one refresh session. RefreshTokenID is
// the identifier of the only refresh token currently accepted for this
// session; rotation replaces it atomically.
type Record struct {
	SessionID      string `json:"session_id"`
	AccountID      string `json:"account_id"`
	RefreshTokenID string `json:"refresh_token_id"`
	Role           string `json:"role,omitempty"`
	Device         string `json:"device,omitempty"`
	IP             string `json:"ip,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	LastSeenAt     int64  `json:"last_seen_at"`
}
