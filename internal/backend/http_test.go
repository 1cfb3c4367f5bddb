package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sterihub/pkg/domainerrors"
)

func TestHTTPClient_SetSession(t *testing.T) {
	c := NewHTTPClient("http://unused", time.Second)

	t.Run("rejects an incomplete pair", func(t *testing.T) {
		err := c.SetSession(context.Background(), "access", "")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("stores a complete pair", func(t *testing.T) {
		assert.NoError(t, c.SetSession(context.Background(), "access", "refresh"))
	})
}

func TestHTTPClient_RefreshSession(t *testing.T) {
	userID := uuid.New()

	t.Run("successful refresh returns the new session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth-refresh", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "old-refresh", body["refreshToken"])

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"accessToken":  "new-access",
					"refreshToken": "new-refresh",
					"expiresIn":    3600,
					"user":         map[string]any{"id": userID.String(), "email": "tech@facility.example", "role": "technician"},
				},
			})
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		session, err := c.RefreshSession(context.Background(), "old-refresh")
		require.NoError(t, err)

		assert.Equal(t, "new-access", session.AccessToken)
		assert.Equal(t, "new-refresh", session.RefreshToken)
		assert.Equal(t, int64(3600), session.ExpiresIn)
		require.NotNil(t, session.User)
		assert.Equal(t, userID.String(), session.User.ID)
	})

	t.Run("rejected refresh surfaces the gateway message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid refresh token"})
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		session, err := c.RefreshSession(context.Background(), "stale")
		require.Error(t, err)
		assert.Nil(t, session)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "Invalid refresh token")
	})

	t.Run("unreachable gateway maps to unavailable", func(t *testing.T) {
		c := NewHTTPClient("http://127.0.0.1:1", 100*time.Millisecond)
		_, err := c.RefreshSession(context.Background(), "whatever")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
	})
}

func TestHTTPClient_GetUser(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the user for a valid bearer token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth-user", r.URL.Path)
			require.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"id": userID.String(), "email": "tech@facility.example", "role": "technician"},
			})
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		user, err := c.GetUser(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, userID.String(), user.ID)
		assert.Equal(t, "technician", user.Role)
	})

	t.Run("non-200 is unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		_, err := c.GetUser(context.Background(), "expired")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})
}

func TestHTTPClient_SignOut(t *testing.T) {
	t.Run("posts the mirrored refresh token and clears local state", func(t *testing.T) {
		var gotRefresh string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth-logout", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotRefresh = body["refreshToken"]
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		require.NoError(t, c.SetSession(context.Background(), "access", "refresh"))

		require.NoError(t, c.SignOut(context.Background(), "access"))
		assert.Equal(t, "refresh", gotRefresh)

		// A second sign-out no longer holds a refresh token to revoke.
		require.NoError(t, c.SignOut(context.Background(), ""))
		assert.Empty(t, gotRefresh)
	})

	t.Run("gateway failure is reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second)
		assert.Error(t, c.SignOut(context.Background(), "token"))
	})
}
