package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "sterihub/pkg/domainerrors"
	"sterihub/pkg/requestcontext"
)

// Store persists failure records. Stores are pure I/O; the lock/window rules
// live in the service.
type Store interface {
	// Get returns the record, or nil when none exists.
	Get(ctx context.Context, identifier string) (*Record, error)
	// RecordFailure atomically increments the failure count, restarting the
	// count when the window has elapsed, and returns the updated record.
	RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*Record, error)
	// Update overwrites the record.
	Update(ctx context.Context, record *Record) error
	// Clear removes the record.
	Clear(ctx context.Context, identifier string) error
}

// Service applies the protection thresholds over a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	config Config
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check evaluates whether a login attempt for email from ip may proceed.
// Missing records take the same code path as existing ones so response
// timing does not reveal account existence.
func (s *Service) Check(ctx context.Context, email, ip string) (*Result, error) {
	record, err := s.store.Get(ctx, Key(email, ip))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get lockout record")
	}
	if record == nil {
		record = &Record{}
	}

	now := requestcontext.Now(ctx)

	if record.IsLockedAt(now) {
		return &Result{
			Allowed:           false,
			RemainingAttempts: 0,
			ResetAt:           *record.LockedUntil,
		}, nil
	}

	if record.WindowExpired(now, s.config.Window) {
		return &Result{
			Allowed:           true,
			RemainingAttempts: s.config.AttemptsPerWindow,
			ResetAt:           now.Add(s.config.Window),
		}, nil
	}

	if record.FailureCount >= s.config.AttemptsPerWindow {
		return &Result{
			Allowed:           false,
			RemainingAttempts: 0,
			ResetAt:           record.LastFailureAt.Add(s.config.Window),
		}, nil
	}

	return &Result{
		Allowed:           true,
		RemainingAttempts: record.RemainingAttempts(s.config.AttemptsPerWindow),
		ResetAt:           now.Add(s.config.Window),
	}, nil
}

// RecordFailure counts a failed attempt and applies the hard lock when the
// threshold is crossed.
func (s *Service) RecordFailure(ctx context.Context, email, ip string) (*Record, error) {
	now := requestcontext.Now(ctx)
	record, err := s.store.RecordFailure(ctx, Key(email, ip), now, s.config.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}

	if record.ShouldHardLock(s.config.HardLockThreshold) && !record.IsLockedAt(now) {
		record.ApplyHardLock(s.config.HardLockDuration, now)
		if err := s.store.Update(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply hard lock")
		}
		s.logger.WarnContext(ctx, "hard lock applied",
			"identifier", record.Identifier,
			"locked_until", record.LockedUntil,
		)
	}

	return record, nil
}

// Clear removes all failure state for the identifier. Called on successful
// login.
func (s *Service) Clear(ctx context.Context, email, ip string) error {
	if err := s.store.Clear(ctx, Key(email, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout record")
	}
	return nil
}
