// Package authclient implements the client side of the secure login flow:
// CSRF precondition enforcement, credential normalization, the login POST
// with timeout and abort handling, and interpretation of the structured
// response. Successful logins are handed to the session store.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sterihub/internal/authclient/csrf"
	"sterihub/internal/authclient/session"
	"sterihub/internal/backend"
	dErrors "sterihub/pkg/domainerrors"
)

// Doer is the transport seam; *http.Client satisfies it. Tests inject a fake
// to assert that no request is sent when the CSRF precondition fails.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the recognized client options.
type Config struct {
	// BaseURL is the endpoint root; the login path is BaseURL + "/auth-login".
	BaseURL string
	// Timeout is the hard per-attempt deadline. Default 30s.
	Timeout time.Duration
	// Retry is the transport-failure retry budget.
	Retry RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "/functions/v1"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retry.Attempts == 0 && c.Retry.Backoff == nil {
		c.Retry = DefaultRetryPolicy()
	}
	return c
}

// Client submits login attempts with security preconditions enforced before
// any network I/O.
type Client struct {
	cfg      Config
	http     Doer
	guard    *csrf.Guard
	sessions *session.Store
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New constructs a Client. Pass nil for doer to use a plain http.Client
// without a cookie jar, so cookies are only ever attached same-origin.
func New(cfg Config, doer Doer, guard *csrf.Guard, sessions *session.Store, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if doer == nil {
		doer = &http.Client{}
	}
	return &Client{
		cfg:      cfg,
		http:     doer,
		guard:    guard,
		sessions: sessions,
		logger:   logger,
		tracer:   otel.Tracer("sterihub/authclient"),
	}
}

// Sessions exposes the session store the client persists into.
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// SecureLogin runs one login attempt end-to-end. Rate limiting comes back as
// a result, not an error; everything else that can go wrong is a coded error
// (CodeSecurityToken, CodeTimeout, CodeUnavailable, CodeUnauthorized).
// Every outcome is logged with elapsed time and the email attempted, never
// the password or raw token values.
func (c *Client) SecureLogin(ctx context.Context, creds Credentials) (*LoginResult, error) {
	start := time.Now()
	email := NormalizeEmail(creds.Email)

	ctx, span := c.tracer.Start(ctx, "authclient.SecureLogin")
	defer span.End()

	result, err := c.login(ctx, creds, email)

	elapsed := time.Since(start).Milliseconds()
	switch {
	case err != nil:
		span.SetAttributes(attribute.String("login.outcome", string(dErrors.CodeOf(err))))
		c.logger.WarnContext(ctx, "login failed",
			"email", email,
			"elapsed_ms", elapsed,
			"error", err.Error(),
		)
	case !result.Success:
		span.SetAttributes(attribute.String("login.outcome", "rate_limited"))
		c.logger.WarnContext(ctx, "login rate limited",
			"email", email,
			"elapsed_ms", elapsed,
			"remaining_attempts", result.RateLimit.RemainingAttempts,
		)
	default:
		span.SetAttributes(attribute.String("login.outcome", "success"))
		c.logger.InfoContext(ctx, "login succeeded",
			"email", email,
			"elapsed_ms", elapsed,
		)
	}
	return result, err
}

func (c *Client) login(ctx context.Context, creds Credentials, email string) (*LoginResult, error) {
	// CSRF precondition, enforced before any network I/O.
	token := creds.CSRFToken
	if token == "" {
		generated, err := csrf.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate security token")
		}
		token = generated
		c.guard.Store(token)
	}
	if !csrf.Validate(token, c.guard.Retrieve()) {
		return nil, dErrors.New(dErrors.CodeSecurityToken, "security token invalid, refresh and retry")
	}

	body, err := json.Marshal(loginRequest{
		Email:      email,
		Password:   creds.Password,
		CSRFToken:  token,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode login request")
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	result, tokens, err := interpretResponse(resp)
	if err != nil || tokens == nil {
		return result, err
	}

	// Storage failure here is fatal: an unpersisted login must not be
	// reported as success.
	if err := c.sessions.StoreTokens(ctx, *tokens); err != nil {
		return nil, err
	}
	return result, nil
}

// post issues the login request with the hard timeout, retrying only
// transport-level failures per the configured policy.
func (c *Client) post(ctx context.Context, body []byte) (*loginHTTPResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retry.attempts(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request timeout, check your connection")
			case <-time.After(c.cfg.Retry.delay(attempt - 1)):
			}
			c.logger.InfoContext(ctx, "retrying login request", "attempt", attempt+1)
		}

		resp, err := c.postOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// Only transport failures are worth another attempt.
		if !dErrors.Is(err, dErrors.CodeTimeout) && !dErrors.Is(err, dErrors.CodeUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) postOnce(ctx context.Context, body []byte) (*loginHTTPResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL+"/auth-login", bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		// A triggered deadline surfaces as a connectivity-distinct error.
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request timeout, check your connection")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "login request failed")
	}
	defer resp.Body.Close()

	var parsed loginResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	return &loginHTTPResponse{
		status:     resp.StatusCode,
		statusText: http.StatusText(resp.StatusCode),
		body:       parsed,
		parseErr:   decodeErr,
	}, nil
}

type loginHTTPResponse struct {
	status     int
	statusText string
	body       loginResponse
	parseErr   error
}

// interpretResponse maps the HTTP response onto the result/error taxonomy.
// On success it also returns the token triple for the session store.
func interpretResponse(resp *loginHTTPResponse) (*LoginResult, *session.Tokens, error) {
	// 429 is a structured result, not an error: the caller may want to show
	// a countdown from the reset metadata.
	if resp.status == http.StatusTooManyRequests {
		info := resp.body.RateLimitInfo
		if info == nil {
			info = &RateLimitInfo{}
		}
		message := resp.body.Message
		if message == "" {
			message = "Too many login attempts"
		}
		return &LoginResult{Success: false, Message: message, RateLimit: info}, nil, nil
	}

	if resp.status < 200 || resp.status > 299 {
		if resp.parseErr != nil || resp.body.Message == "" {
			return nil, nil, dErrors.Newf(errorCodeFor(resp.status), "HTTP %d: %s", resp.status, resp.statusText)
		}
		return nil, nil, dErrors.New(errorCodeFor(resp.status), resp.body.Message)
	}

	if resp.parseErr != nil {
		return nil, nil, dErrors.Wrap(resp.parseErr, dErrors.CodeInternal, "unparseable login response")
	}
	if !resp.body.Success || resp.body.Data == nil {
		message := resp.body.Message
		if message == "" {
			message = "Authentication failed"
		}
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, message)
	}

	data := resp.body.Data
	return &LoginResult{Success: true, User: data.User}, &session.Tokens{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
	}, nil
}

func errorCodeFor(status int) dErrors.Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return dErrors.CodeUnauthorized
	case status >= 400 && status < 500:
		return dErrors.CodeBadRequest
	default:
		return dErrors.CodeUnavailable
	}
}

// Logout clears all session state. It never fails.
func (c *Client) Logout(ctx context.Context) {
	c.sessions.ClearTokens(ctx)
	c.logger.InfoContext(ctx, "logged out")
}

// CurrentUser returns the authenticated user, or nil when the session is
// absent, expired beyond refresh, or the backend rejects it.
func (c *Client) CurrentUser(ctx context.Context) *backend.User {
	return c.sessions.CurrentUser(ctx)
}

// String renders the config without any secret material.
func (c Config) String() string {
	return fmt.Sprintf("authclient.Config{BaseURL:%s, Timeout:%s, RetryAttempts:%d}", c.BaseURL, c.Timeout, c.Retry.Attempts)
}
