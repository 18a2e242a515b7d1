package types

import "time"

// Credentials represents a portal login request
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResult is the outcome of a login attempt. Validation failures are
// reported here rather than as errors. Token is informational; AccessToken is
// the bearer credential.
type LoginResult struct {
	Success     bool   `json:"success"`
	Token       string `json:"token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Error       string `json:"error,omitempty"`
}

// UserClaims represents the identity carried by a signed access token
type UserClaims struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	ClinicIDs []string `json:"clinic_ids,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// AuthToken represents a signed access token
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
