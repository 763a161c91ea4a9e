package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/booklog/internal/auth"
	"github.com/hitoshi/booklog/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// 本、セッション、identities、ユーザーを一括削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies auth.CookieOptions
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookies auth.CookieOptions) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: cookies,
	}
}

// Withdraw はユーザーの退会処理を実行し、認証Cookieを削除する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.cookies.ClearAuthCookies(auth.ResponseCookieSink{W: w})
	w.WriteHeader(http.StatusNoContent)
}

// compile-time interface check
var _ UserServiceInterface = (*user.Service)(nil)
