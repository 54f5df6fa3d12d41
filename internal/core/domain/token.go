package domain

import "time"

const TokenTypeBearer = "bearer"

// RefreshToken is the stored form of an issued refresh token. Only the
// SHA-256 digest of the raw value is ever persisted.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Live reports whether the token is still usable at now.
func (t *RefreshToken) Live(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Role         string `json:"role"`
	ExpiresIn    int64  `json:"expires_in"`
}
