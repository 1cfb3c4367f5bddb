// Package backend defines the capability surface of the remote backend SDK
// that the session layer depends on. The session store only needs four
// operations; depending on this narrow interface instead of a concrete SDK
// type keeps the store testable and the SDK swappable.
package backend

import "context"

// Session is a freshly issued token pair with its validity window.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
	User         *User
}

// User is the minimal identity record the platform surfaces.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Client is the narrow backend auth surface.
//
//go:generate mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks
type Client interface {
	// SetSession mirrors an externally obtained token pair into the SDK's
	// in-memory session so direct SDK calls stay authenticated.
	SetSession(ctx context.Context, accessToken, refreshToken string) error

	// RefreshSession exchanges a refresh token for a new session.
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)

	// GetUser returns the user record the access token belongs to.
	GetUser(ctx context.Context, accessToken string) (*User, error)

	// SignOut invalidates the session server-side.
	SignOut(ctx context.Context, accessToken string) error
}
