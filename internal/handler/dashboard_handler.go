package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/booklog/internal/book"
	"github.com/hitoshi/booklog/internal/middleware"
	"github.com/hitoshi/booklog/internal/model"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "web/templates/*.html"))

// CurrentUserFinder はダッシュボード表示に使うユーザー取得インターフェース。
type CurrentUserFinder interface {
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// DashboardHandler はサーバーレンダリングするHTMLページのハンドラー。
type DashboardHandler struct {
	users           CurrentUserFinder
	googleLoginPath string
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(users CurrentUserFinder) *DashboardHandler {
	return &DashboardHandler{
		users:           users,
		googleLoginPath: "/auth/google/login",
	}
}

type loginPage struct {
	GoogleLoginPath string
}

type dashboardPage struct {
	Name          string
	Statuses      []model.BookStatus
	MaxTextLength int
}

// LoginPage はログインページを表示する。
// GET /auth/login
func (h *DashboardHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "login.html", loginPage{GoogleLoginPath: h.googleLoginPath})
}

// Dashboard は本棚ページを表示する。本の一覧はページ内のスクリプトがAPIから取得する。
// GET /dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	if caller == nil {
		http.Redirect(w, r, "/auth/login", http.StatusTemporaryRedirect)
		return
	}

	user, err := h.users.GetCurrentUser(r.Context(), caller.UserID)
	if err != nil {
		slog.Error("failed to load dashboard user",
			slog.String("user_id", caller.UserID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	renderPage(w, "dashboard.html", dashboardPage{
		Name:          user.Name,
		Statuses:      model.BookStatuses,
		MaxTextLength: book.MaxTextLength,
	})
}

// StaticHandler は埋め込み済みの静的ファイル（JS/CSS）を /static/ 配下で配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// renderPage はテンプレートをバッファに描画してから書き込む。
// 描画途中の失敗で不完全なHTMLを返さないようにする。
func renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
