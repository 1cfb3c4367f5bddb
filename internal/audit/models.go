// Package audit records security events for the auth gateway. Healthcare
// deployments need a durable trail of who attempted to sign in, from where,
// and with what outcome.
package audit

import (
	"context"
	"time"
)

// EventType enumerates the security events the gateway emits.
type EventType string

const (
	EventLoginSuccess   EventType = "login_success"
	EventLoginFailure   EventType = "login_failure"
	EventLoginBlocked   EventType = "login_blocked"
	EventTokenRefreshed EventType = "token_refreshed"
	EventTokenReplay    EventType = "token_replay"
	EventLogout         EventType = "logout"
)

// Event is one structured security event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Email     string    `json:"email,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Device    Device    `json:"device"`
	Detail    string    `json:"detail,omitempty"`
}

// Device is parsed from the User-Agent header.
type Device struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Mobile  bool   `json:"mobile,omitempty"`
	Bot     bool   `json:"bot,omitempty"`
}

// Publisher captures structured security events. Emit must never block the
// login path; implementations buffer and publish asynchronously.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
