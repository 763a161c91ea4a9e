// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/booklog/internal/auth"
	"github.com/hitoshi/booklog/internal/middleware"
	"github.com/hitoshi/booklog/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookies       auth.CookieOptions
	SessionMaxAge int    // リフレッシュセッションCookieの有効期間（秒）
	HomePath      string // ログイン後のリダイレクト先（既定: /dashboard）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.HomePath == "" {
		config.HomePath = "/dashboard"
	}
	if config.Cookies.Path == "" {
		config.Cookies.Path = "/"
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.config.Cookies.NewCookie(oauthStateCookie, state, oauthStateMaxAge))

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, h.config.Cookies.ExpireCookie(oauthStateCookie))

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	accessMaxAge := int(time.Until(result.AccessExpiresAt).Seconds())
	http.SetCookie(w, h.config.Cookies.NewCookie(auth.SessionCookieName, result.Session.ID, h.config.SessionMaxAge))
	http.SetCookie(w, h.config.Cookies.NewCookie(auth.AccessTokenCookieName, result.AccessToken, accessMaxAge))

	http.Redirect(w, r, h.config.HomePath, http.StatusTemporaryRedirect)
}

// Logout はリフレッシュセッションを破棄し、認証Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if caller := middleware.CallerFromContext(r.Context()); caller != nil {
		sessionID = caller.SessionID
	}
	if sessionID == "" {
		if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
			sessionID = cookie.Value
		}
	}

	if sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// 失敗してもCookieは削除する
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.config.Cookies.ClearAuthCookies(auth.ResponseCookieSink{W: w})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ AuthServiceInterface = (*auth.Service)(nil)
