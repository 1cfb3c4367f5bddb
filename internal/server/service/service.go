// Package service orchestrates the gateway's login, refresh, and logout
// flows: lockout checks, credential verification, token issuance, and audit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"

	"sterihub/internal/audit"
	"sterihub/internal/jwttoken"
	"sterihub/internal/platform/metrics"
	"sterihub/internal/server/lockout"
	"sterihub/internal/server/store/refreshtoken"
	"sterihub/internal/server/store/user"
	dErrors "sterihub/pkg/domainerrors"
	"sterihub/pkg/requestcontext"
	"sterihub/pkg/secrets"
	"sterihub/pkg/sentinel"
)

// TokenData is the issued credential triple plus the user it belongs to.
type TokenData struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
	User         *user.User
}

// RateLimited carries the retry metadata for a blocked attempt.
type RateLimited struct {
	Message           string
	RemainingAttempts int
	ResetAt           time.Time
}

// LoginOutcome is either issued tokens or a rate-limit block. Exactly one
// field is set.
type LoginOutcome struct {
	Data        *TokenData
	RateLimited *RateLimited
}

// Service implements the gateway auth flows.
type Service struct {
	users   user.Store
	refresh refreshtoken.Store
	lockout *lockout.Service
	jwt     *jwttoken.JWTService
	audit   audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		s.AccessTokenTTL = access
		s.RefreshTokenTTL = refresh
	}
}

// New constructs the auth service.
func New(
	users user.Store,
	refresh refreshtoken.Store,
	lockoutSvc *lockout.Service,
	jwt *jwttoken.JWTService,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:   users,
		refresh: refresh,
		lockout: lockoutSvc,
		jwt:     jwt,
		audit:   audit.NopPublisher{},
		logger:  logger,
		// Default to a private registry so constructing multiple services
		// (tests) never collides on metric registration.
		metrics:         metrics.New(prometheus.NewRegistry()),
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and issues a token pair. Lockout blocks come
// back as a structured outcome so the transport can build the 429 body;
// credential rejections are CodeUnauthorized with a message that does not
// reveal whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginOutcome, error) {
	start := time.Now()
	defer func() {
		s.metrics.LoginDuration.Observe(time.Since(start).Seconds())
	}()

	ip := requestcontext.ClientIP(ctx)

	check, err := s.lockout.Check(ctx, email, ip)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		// Blocked attempts still count, so sustained hammering escalates
		// from the window block to the hard lock instead of saturating at
		// the window limit.
		if _, recErr := s.lockout.RecordFailure(ctx, email, ip); recErr != nil {
			s.logger.WarnContext(ctx, "failed to record blocked attempt", "error", recErr)
		}
		s.metrics.LoginPrevented.Inc()
		s.emit(ctx, audit.EventLoginBlocked, email, "", "too many attempts")
		return &LoginOutcome{RateLimited: &RateLimited{
			Message:           "Too many login attempts. Please try again later.",
			RemainingAttempts: check.RemainingAttempts,
			ResetAt:           check.ResetAt,
		}}, nil
	}

	account, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.rejectLogin(ctx, email, ip, "unknown account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	if !account.Active {
		return nil, s.rejectLogin(ctx, email, ip, "account inactive")
	}

	if err := secrets.Verify(password, account.PasswordHash); err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidInput) {
			return nil, s.rejectLogin(ctx, email, ip, "wrong password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}

	data, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := s.lockout.Clear(ctx, email, ip); err != nil {
		// Not worth failing a correct login over; the window expires anyway.
		s.logger.WarnContext(ctx, "failed to clear lockout state", "error", err)
	}

	s.metrics.LoginSuccess.Inc()
	s.emit(ctx, audit.EventLoginSuccess, email, account.ID.String(), "")
	return &LoginOutcome{Data: data}, nil
}

// rejectLogin counts the failure and returns the uniform credential error.
func (s *Service) rejectLogin(ctx context.Context, email, ip, reason string) error {
	if _, err := s.lockout.RecordFailure(ctx, email, ip); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure", "error", err)
	}
	s.metrics.LoginFailure.Inc()
	s.emit(ctx, audit.EventLoginFailure, email, "", reason)
	return dErrors.New(dErrors.CodeUnauthorized, "Invalid email or password")
}

// Refresh exchanges a refresh token for a new pair. Tokens are single-use;
// a replayed token revokes every session the user holds.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenData, error) {
	now := requestcontext.Now(ctx)

	record, err := s.refresh.Consume(ctx, token, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) && record != nil {
			s.emit(ctx, audit.EventTokenReplay, "", record.UserID.String(), "refresh token replayed")
			if revokeErr := s.refresh.RevokeAllForUser(ctx, record.UserID); revokeErr != nil {
				s.logger.ErrorContext(ctx, "failed to revoke sessions after replay", "error", revokeErr)
			}
		}
		s.metrics.RefreshFailures.Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid refresh token")
	}

	account, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		s.metrics.RefreshFailures.Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid refresh token")
	}
	if !account.Active {
		s.metrics.RefreshFailures.Inc()
		return nil, dErrors.New(dErrors.CodeForbidden, "account inactive")
	}

	data, err := s.issueTokens(ctx, account)
	if err != nil {
		s.metrics.RefreshFailures.Inc()
		return nil, err
	}

	s.metrics.TokenRefreshes.Inc()
	s.emit(ctx, audit.EventTokenRefreshed, account.Email, account.ID.String(), "")
	return data, nil
}

// Logout revokes the refresh token. It never fails: logout must always
// appear to succeed.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken != "" {
		if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
			s.logger.WarnContext(ctx, "failed to revoke refresh token on logout", "error", err)
		}
	}
	s.emit(ctx, audit.EventLogout, "", requestcontext.UserID(ctx), "")
}

// CurrentUser returns the account the access token was minted for.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	account, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no user for session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	return account, nil
}

func (s *Service) issueTokens(ctx context.Context, account *user.User) (*TokenData, error) {
	accessToken, err := s.jwt.GenerateAccessToken(account.ID, account.Email, account.Role, s.AccessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}

	opaque, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}

	now := requestcontext.Now(ctx)
	if err := s.refresh.Create(ctx, &refreshtoken.Record{
		Token:     opaque,
		UserID:    account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.RefreshTokenTTL),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	return &TokenData{
		AccessToken:  accessToken,
		RefreshToken: opaque,
		ExpiresIn:    int64(s.AccessTokenTTL.Seconds()),
		User:         account,
	}, nil
}

func (s *Service) emit(ctx context.Context, eventType audit.EventType, email, userID, detail string) {
	s.audit.Emit(ctx, audit.Event{
		Type:      eventType,
		Timestamp: requestcontext.Now(ctx),
		Email:     email,
		UserID:    userID,
		ClientIP:  requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Device:    parseDevice(requestcontext.UserAgent(ctx)),
		Detail:    detail,
	})
}

func parseDevice(rawUA string) audit.Device {
	if rawUA == "" {
		return audit.Device{}
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	return audit.Device{
		Browser: browser,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
