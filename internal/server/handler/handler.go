// Package handler exposes the gateway auth flows over HTTP with the envelope
// the client-side flow expects.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sterihub/internal/platform/middleware"
	"sterihub/internal/server/service"
	"sterihub/internal/server/store/user"
	dErrors "sterihub/pkg/domainerrors"
	"sterihub/pkg/requestcontext"
)

// AuthService is the service surface the handlers depend on.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginOutcome, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenData, error)
	Logout(ctx context.Context, refreshToken string)
	CurrentUser(ctx context.Context, userID string) (*user.User, error)
}

// Handler handles the auth endpoints.
type Handler struct {
	auth         AuthService
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates an auth Handler.
func New(auth AuthService, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		auth:         auth,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// NewRouter wires the full middleware chain and all gateway routes.
func NewRouter(h *Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Post("/functions/v1/auth-login", h.handleLogin)
	r.Post("/functions/v1/auth-refresh", h.handleRefresh)
	r.Post("/functions/v1/auth-logout", h.handleLogout)

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(h.jwtValidator, logger))
		protected.Get("/functions/v1/auth-user", h.handleCurrentUser)
	})

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	CSRFToken  string `json:"csrfToken"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenPayload struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *userPayload `json:"user"`
}

type rateLimitPayload struct {
	RemainingAttempts int   `json:"remainingAttempts"`
	ResetTime         int64 `json:"resetTime"` // epoch milliseconds
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "email and password are required"))
		return
	}

	// The CSRF token is validated client-side against session storage before
	// the request is sent; here it only has to be present.
	if req.CSRFToken == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "missing security token"))
		return
	}

	outcome, err := h.auth.Login(ctx, email, req.Password)
	if err != nil {
		h.logAuthError(ctx, "login failed", err)
		writeError(w, err)
		return
	}

	if outcome.RateLimited != nil {
		writeRateLimited(w, outcome.RateLimited)
		return
	}

	writeData(w, http.StatusOK, tokenPayloadFrom(outcome.Data))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "missing refresh token"))
		return
	}

	data, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logAuthError(ctx, "refresh failed", err)
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, tokenPayloadFrom(data))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// Logout always succeeds, even with an unreadable body.
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.auth.Logout(r.Context(), req.RefreshToken)
	writeData(w, http.StatusOK, nil)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID == "" {
		// Should never happen behind RequireAuth.
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	account, err := h.auth.CurrentUser(ctx, userID)
	if err != nil {
		h.logAuthError(ctx, "current user lookup failed", err)
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, &userPayload{
		ID:    account.ID.String(),
		Email: account.Email,
		Role:  account.Role,
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) logAuthError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func tokenPayloadFrom(data *service.TokenData) *tokenPayload {
	return &tokenPayload{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
		User: &userPayload{
			ID:    data.User.ID.String(),
			Email: data.User.Email,
			Role:  data.User.Role,
		},
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := dErrors.HTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		// Internal details stay in logs.
		message = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

func writeRateLimited(w http.ResponseWriter, block *service.RateLimited) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": block.Message,
		"rateLimitInfo": &rateLimitPayload{
			RemainingAttempts: block.RemainingAttempts,
			ResetTime:         block.ResetAt.UnixMilli(),
		},
	})
}
