package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	dErrors "sterihub/pkg/domainerrors"
)

// HTTPClient speaks the auth gateway's refresh/user/logout endpoints. It also
// keeps the SDK-style in-memory session that SetSession mirrors into.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPClient builds a backend client rooted at baseURL
// (e.g. "https://api.example.com/functions/v1").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the gateway's uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
		User         *User  `json:"user,omitempty"`
	} `json:"data,omitempty"`
}

func (c *HTTPClient) SetSession(_ context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "access and refresh tokens are required")
	}
	c.mu.Lock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth-refresh", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "refresh request failed")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unparseable refresh response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, msg)
	}

	session := &Session{
		AccessToken:  env.Data.AccessToken,
		RefreshToken: env.Data.RefreshToken,
		ExpiresIn:    env.Data.ExpiresIn,
		User:         env.Data.User,
	}
	if err := c.SetSession(ctx, session.AccessToken, session.RefreshToken); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth-user", nil)
	if err != nil {
		return nil, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "user request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.Newf(dErrors.CodeUnauthorized, "HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var payload struct {
		Success bool  `json:"success"`
		Data    *User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unparseable user response")
	}
	if !payload.Success || payload.Data == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no user for session")
	}
	return payload.Data, nil
}

func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()

	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return fmt.Errorf("marshal logout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth-logout", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "logout request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.Newf(dErrors.CodeInternal, "HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
