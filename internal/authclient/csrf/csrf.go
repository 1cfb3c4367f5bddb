// Package csrf implements the anti-forgery token guard for the login flow.
// The token is a per-session random value held in session-scoped storage; a
// login request must present the exact stored value before any network I/O
// happens.
package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"sterihub/internal/authclient/storage"
)

// StorageKey is the fixed session-storage key holding the active token.
const StorageKey = "sterihub.csrf_token"

const tokenLength = 32

// Guard generates, stores, and validates per-session CSRF tokens.
type Guard struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewGuard constructs a Guard over the given session-scoped storage.
func NewGuard(st storage.Storage, logger *slog.Logger) *Guard {
	return &Guard{storage: st, logger: logger}
}

// Generate produces a fresh token: 32 cryptographically random bytes,
// base64-encoded, with non-alphanumeric characters stripped and the result
// truncated to 32 characters.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate csrf token: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf)
	var b strings.Builder
	b.Grow(tokenLength)
	for _, c := range encoded {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			if b.Len() == tokenLength {
				break
			}
		}
	}
	return b.String(), nil
}

// Store persists the token under the fixed key, replacing any previous value.
// Storage failure is non-fatal: the caller proceeds without persisted CSRF
// state rather than crashing the login flow.
func (g *Guard) Store(token string) {
	if err := g.storage.Set(StorageKey, token); err != nil {
		g.logger.Warn("failed to persist csrf token, continuing without stored state",
			"error", err,
		)
	}
}

// Retrieve returns the stored token, or "" when absent or storage errors.
func (g *Guard) Retrieve() string {
	value, err := g.storage.Get(StorageKey)
	if err != nil {
		g.logger.Warn("failed to read csrf token", "error", err)
		return ""
	}
	return value
}

// Clear removes the stored token. Called on logout.
func (g *Guard) Clear() {
	if err := g.storage.Delete(StorageKey); err != nil {
		g.logger.Warn("failed to clear csrf token", "error", err)
	}
}

// Validate reports whether candidate exactly matches the stored token.
// Exact, case-sensitive comparison; no normalization. A plain equality check
// is sufficient here: the token is a same-origin anti-forgery value, not a
// secret verified by a party that could exploit timing.
func Validate(candidate, stored string) bool {
	return stored != "" && candidate == stored
}
