package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sterihub/internal/jwttoken"
	"sterihub/internal/platform/logger"
	"sterihub/internal/server/service"
	"sterihub/internal/server/store/user"
	dErrors "sterihub/pkg/domainerrors"
	"sterihub/pkg/testutil"
)

// stubAuth scripts the service layer so handler behavior can be tested in
// isolation from credential logic.
type stubAuth struct {
	loginOutcome *service.LoginOutcome
	loginErr     error
	refreshData  *service.TokenData
	refreshErr   error
	currentUser  *user.User
	currentErr   error

	loggedOutToken string
	loginEmail     string
}

func (s *stubAuth) Login(_ context.Context, email, _ string) (*service.LoginOutcome, error) {
	s.loginEmail = email
	return s.loginOutcome, s.loginErr
}

func (s *stubAuth) Refresh(context.Context, string) (*service.TokenData, error) {
	return s.refreshData, s.refreshErr
}

func (s *stubAuth) Logout(_ context.Context, refreshToken string) {
	s.loggedOutToken = refreshToken
}

func (s *stubAuth) CurrentUser(context.Context, string) (*user.User, error) {
	return s.currentUser, s.currentErr
}

const signingKey = "handler-test-signing-key"

func newRouter(auth *stubAuth) http.Handler {
	log := logger.NewNop()
	jwt := jwttoken.NewJWTService(signingKey, "sterihub", "sterihub-clients")
	return NewRouter(New(auth, jwt, log), log)
}

func issuedData() *service.TokenData {
	return &service.TokenData{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		ExpiresIn:    3600,
		User: &user.User{
			ID:    uuid.New(),
			Email: "tech@facility.example",
			Role:  "technician",
		},
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
		User         *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	} `json:"data"`
	RateLimitInfo *struct {
		RemainingAttempts int   `json:"remainingAttempts"`
		ResetTime         int64 `json:"resetTime"`
	} `json:"rateLimitInfo"`
}

func TestHandleLogin(t *testing.T) {
	validBody := map[string]any{
		"email":     "Tech@Facility.Example",
		"password":  "pw",
		"csrfToken": "token-123",
	}

	t.Run("successful login returns the token envelope", func(t *testing.T) {
		data := issuedData()
		auth := &stubAuth{loginOutcome: &service.LoginOutcome{Data: data}}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-login", validBody))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[envelope](t, rr)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Data)
		assert.Equal(t, "access-abc", resp.Data.AccessToken)
		assert.Equal(t, "refresh-xyz", resp.Data.RefreshToken)
		assert.Equal(t, int64(3600), resp.Data.ExpiresIn)
		require.NotNil(t, resp.Data.User)
		assert.Equal(t, data.User.ID.String(), resp.Data.User.ID)
		assert.Equal(t, "technician", resp.Data.User.Role)

		assert.Equal(t, "tech@facility.example", auth.loginEmail, "email is normalized before the service sees it")
	})

	t.Run("rate limited login returns 429 with reset metadata", func(t *testing.T) {
		resetAt := time.Date(2026, 3, 14, 9, 15, 0, 0, time.UTC)
		auth := &stubAuth{loginOutcome: &service.LoginOutcome{RateLimited: &service.RateLimited{
			Message:           "Too many login attempts. Please try again later.",
			RemainingAttempts: 0,
			ResetAt:           resetAt,
		}}}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-login", validBody))

		testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
		resp := testutil.UnmarshalResponse[envelope](t, rr)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "Too many login attempts")
		require.NotNil(t, resp.RateLimitInfo)
		assert.Equal(t, 0, resp.RateLimitInfo.RemainingAttempts)
		assert.Equal(t, resetAt.UnixMilli(), resp.RateLimitInfo.ResetTime)
	})

	t.Run("rejected credentials return 401", func(t *testing.T) {
		auth := &stubAuth{loginErr: dErrors.New(dErrors.CodeUnauthorized, "Invalid email or password")}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-login", validBody))

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertJSONContains(t, rr, "success", false)
		testutil.AssertJSONContains(t, rr, "message", "Invalid email or password")
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		tests := []struct {
			name string
			body map[string]any
		}{
			{name: "no email", body: map[string]any{"password": "pw", "csrfToken": "t"}},
			{name: "no password", body: map[string]any{"email": "a@b.c", "csrfToken": "t"}},
			{name: "no csrf token", body: map[string]any{"email": "a@b.c", "password": "pw"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				router := newRouter(&stubAuth{})
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-login", tt.body))
				testutil.AssertStatus(t, rr, http.StatusBadRequest)
			})
		}
	})

	t.Run("internal failures are masked", func(t *testing.T) {
		auth := &stubAuth{loginErr: dErrors.Wrap(errors.New("pq: connection reset"), dErrors.CodeInternal, "failed to look up account")}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-login", validBody))

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		testutil.AssertJSONContains(t, rr, "message", "internal error")
		assert.NotContains(t, rr.Body.String(), "connection reset")
	})
}

func TestHandleRefresh(t *testing.T) {
	t.Run("valid token rotates the pair", func(t *testing.T) {
		auth := &stubAuth{refreshData: issuedData()}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-refresh",
			map[string]string{"refreshToken": "refresh-old"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[envelope](t, rr)
		assert.Equal(t, "refresh-xyz", resp.Data.RefreshToken)
	})

	t.Run("missing token is a 400", func(t *testing.T) {
		router := newRouter(&stubAuth{})
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-refresh", map[string]string{}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("rejected token is a 401", func(t *testing.T) {
		auth := &stubAuth{refreshErr: dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-refresh",
			map[string]string{"refreshToken": "replayed"}))

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestHandleLogout(t *testing.T) {
	t.Run("always succeeds and forwards the token", func(t *testing.T) {
		auth := &stubAuth{}
		router := newRouter(auth)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/functions/v1/auth-logout",
			map[string]string{"refreshToken": "refresh-xyz"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "success", true)
		assert.Equal(t, "refresh-xyz", auth.loggedOutToken)
	})

	t.Run("succeeds with an empty body", func(t *testing.T) {
		router := newRouter(&stubAuth{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/functions/v1/auth-logout"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestHandleCurrentUser(t *testing.T) {
	jwt := jwttoken.NewJWTService(signingKey, "sterihub", "sterihub-clients")
	account := &user.User{ID: uuid.New(), Email: "tech@facility.example", Role: "technician"}

	bearerFor := func(t *testing.T, id uuid.UUID) string {
		t.Helper()
		token, err := jwt.GenerateAccessToken(id, account.Email, account.Role, time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}

	t.Run("valid bearer token returns the user", func(t *testing.T) {
		auth := &stubAuth{currentUser: account}
		router := newRouter(auth)

		req := testutil.NewRequest(t, http.MethodGet, "/functions/v1/auth-user")
		req.Header.Set("Authorization", bearerFor(t, account.ID))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[struct {
			Success bool `json:"success"`
			Data    struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"data"`
		}](t, rr)
		assert.True(t, resp.Success)
		assert.Equal(t, account.ID.String(), resp.Data.ID)
		assert.Equal(t, "technician", resp.Data.Role)
	})

	t.Run("missing authorization header is a 401", func(t *testing.T) {
		router := newRouter(&stubAuth{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/functions/v1/auth-user"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertJSONContains(t, rr, "success", false)
	})

	t.Run("garbage bearer token is a 401", func(t *testing.T) {
		router := newRouter(&stubAuth{})
		req := testutil.NewRequest(t, http.MethodGet, "/functions/v1/auth-user")
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("expired token is a 401", func(t *testing.T) {
		router := newRouter(&stubAuth{})
		expired, err := jwt.GenerateAccessToken(account.ID, account.Email, account.Role, -time.Minute)
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/functions/v1/auth-user")
		req.Header.Set("Authorization", "Bearer "+expired)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	router := newRouter(&stubAuth{})

	t.Run("health endpoint reports ok", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "status", "ok")
	})

	t.Run("metrics endpoint serves the registry", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}
