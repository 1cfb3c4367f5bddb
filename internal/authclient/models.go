package authclient

import (
	"strings"

	"sterihub/internal/backend"
)

// Credentials is one login attempt's input.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	CSRFToken  string `json:"csrfToken,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// NormalizeEmail trims surrounding whitespace and lowercases. Idempotent.
// The password is deliberately left untouched.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RateLimitInfo carries the retry metadata from a 429 response.
type RateLimitInfo struct {
	RemainingAttempts int   `json:"remainingAttempts"`
	ResetTime         int64 `json:"resetTime"` // epoch milliseconds
}

// LoginResult is the structured outcome of SecureLogin. Rate limiting is a
// normal result, not an error: the caller decides whether to show a countdown.
type LoginResult struct {
	Success   bool
	User      *backend.User
	Message   string
	RateLimit *RateLimitInfo
}

// loginRequest is the wire shape POSTed to the login endpoint.
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	CSRFToken  string `json:"csrfToken"`
	RememberMe bool   `json:"rememberMe"`
}

// loginResponse is the wire shape of every login endpoint response.
type loginResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	RateLimitInfo *RateLimitInfo `json:"rateLimitInfo,omitempty"`
	Data          *struct {
		AccessToken  string        `json:"accessToken"`
		RefreshToken string        `json:"refreshToken"`
		ExpiresIn    int64         `json:"expiresIn"`
		User         *backend.User `json:"user"`
	} `json:"data,omitempty"`
}
