// Package session owns the lifecycle of the access/refresh token pair: it
// persists issued tokens with their absolute expiry, answers "is the caller
// currently authenticated", and transparently refreshes or clears state.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"sterihub/internal/authclient/csrf"
	"sterihub/internal/authclient/storage"
	"sterihub/internal/backend"
	dErrors "sterihub/pkg/domainerrors"
)

// Session-storage keys. Expiry is stored as epoch milliseconds.
const (
	KeyAccessToken  = "sterihub.access_token"
	KeyRefreshToken = "sterihub.refresh_token"
	KeyExpiresAt    = "sterihub.expires_at"
)

// Tokens is the triple handed over by a successful login or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// Store persists the token pair in session-scoped storage and mirrors it into
// the backend SDK client. At most one valid pair is held at a time; a refresh
// atomically replaces the prior pair.
type Store struct {
	// mu serializes writes to the token keys so a completing refresh is not
	// clobbered by a stale in-flight login response.
	mu      sync.Mutex
	storage storage.Storage
	backend backend.Client
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
	tracer  trace.Tracer

	// refreshGroup collapses concurrent refresh attempts into one network
	// call; concurrent validators near expiry all await the same result.
	refreshGroup singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects a time source, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithTimeout bounds backend refresh/user/sign-out calls.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New constructs a Store. One instance per application bootstrap; ClearTokens
// is the teardown.
func New(st storage.Storage, client backend.Client, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		storage: st,
		backend: client,
		logger:  logger,
		now:     time.Now,
		timeout: 30 * time.Second,
		tracer:  otel.Tracer("sterihub/authclient/session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreTokens persists the triple with absolute expiry (now + expiresIn) and
// mirrors the pair into the backend SDK client. Failure is fatal for this
// call: a session that cannot be recorded must not be treated as
// authenticated, so partial writes are rolled back before returning.
func (s *Store) StoreTokens(ctx context.Context, t Tokens) error {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "access and refresh tokens are required")
	}

	expiresAt := s.now().Add(time.Duration(t.ExpiresIn) * time.Second).UnixMilli()

	s.mu.Lock()
	err := s.writeLocked(t, expiresAt)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.backend.SetSession(ctx, t.AccessToken, t.RefreshToken); err != nil {
		s.clearStorage()
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mirror session into backend client")
	}
	return nil
}

func (s *Store) writeLocked(t Tokens, expiresAt int64) error {
	writes := []struct{ key, value string }{
		{KeyAccessToken, t.AccessToken},
		{KeyRefreshToken, t.RefreshToken},
		{KeyExpiresAt, strconv.FormatInt(expiresAt, 10)},
	}
	for _, w := range writes {
		if err := s.storage.Set(w.key, w.value); err != nil {
			// Fail closed: drop any partial state rather than leaving a
			// mixed old/new pair behind.
			for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt} {
				_ = s.storage.Delete(key)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session tokens")
		}
	}
	return nil
}

// ValidateStoredToken reports whether a non-expired token pair is held.
// An expired pair triggers exactly one refresh attempt; its outcome is the
// answer.
func (s *Store) ValidateStoredToken(ctx context.Context) bool {
	accessToken, _ := s.storage.Get(KeyAccessToken)
	expiresAtRaw, _ := s.storage.Get(KeyExpiresAt)
	if accessToken == "" || expiresAtRaw == "" {
		return false
	}

	expiresAt, err := strconv.ParseInt(expiresAtRaw, 10, 64)
	if err != nil {
		s.logger.Warn("stored expiry is unparseable, clearing session", "error", err)
		s.ClearTokens(ctx)
		return false
	}

	if s.now().UnixMilli() >= expiresAt {
		return s.RefreshToken(ctx)
	}
	return true
}

// RefreshToken exchanges the stored refresh token for a new pair. Any error
// fails closed: all stored state is cleared and false returned. Concurrent
// callers share a single in-flight refresh.
func (s *Store) RefreshToken(ctx context.Context) bool {
	result, _, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		return s.refreshOnce(ctx), nil
	})
	ok, _ := result.(bool)
	return ok
}

func (s *Store) refreshOnce(ctx context.Context) bool {
	ctx, span := s.tracer.Start(ctx, "session.refresh")
	defer span.End()

	refreshToken, _ := s.storage.Get(KeyRefreshToken)
	if refreshToken == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.backend.RefreshSession(ctx, refreshToken)
	if err != nil || session == nil || session.AccessToken == "" {
		s.logger.Warn("token refresh failed, clearing session", "error", err)
		s.ClearTokens(ctx)
		return false
	}

	if err := s.StoreTokens(ctx, Tokens{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	}); err != nil {
		s.logger.Warn("failed to persist refreshed session, clearing", "error", err)
		s.ClearTokens(ctx)
		return false
	}

	s.logger.Info("session refreshed")
	return true
}

// ClearTokens removes all stored session state including the CSRF token and
// signs out of the mirrored backend client. It never fails: logout must
// always appear to succeed, so errors are logged and swallowed.
func (s *Store) ClearTokens(ctx context.Context) {
	accessToken, _ := s.storage.Get(KeyAccessToken)

	s.clearStorage()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.backend.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("backend sign-out failed during logout", "error", err)
	}
}

func (s *Store) clearStorage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt, csrf.StorageKey} {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Warn("failed to clear session key", "key", key, "error", err)
		}
	}
}

// AccessToken returns the currently stored access token, or "".
func (s *Store) AccessToken() string {
	token, _ := s.storage.Get(KeyAccessToken)
	return token
}

// CurrentUser validates the stored session and fetches the user record it
// belongs to. Any failure is reported as "no user" rather than propagated.
func (s *Store) CurrentUser(ctx context.Context) *backend.User {
	if !s.ValidateStoredToken(ctx) {
		return nil
	}

	accessToken, _ := s.storage.Get(KeyAccessToken)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.backend.GetUser(ctx, accessToken)
	if err != nil {
		s.logger.Warn("failed to fetch current user", "error", err)
		return nil
	}
	return user
}
