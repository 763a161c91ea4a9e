package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/booklog/internal/metrics"
	"github.com/hitoshi/booklog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.CallerResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は /metrics を公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// ヘルスチェック（nilの場合は常に200）
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 本
	BookService BookServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CleanPath → RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS → Gatekeeper
//
// Gatekeeperはルーティング前に /api, /dashboard, /auth のアクセス方針を適用する。
// /api 配下の状態変更リクエストはさらにCSRF検証を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.CleanPath)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewGatekeeper(deps.Resolver, middleware.GatekeeperConfig{}))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	bookHandler := NewBookHandler(deps.BookService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig.Cookies)
	pageHandler := NewDashboardHandler(deps.AuthService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})
	r.Handle("/static/*", StaticHandler())

	// 認証ルート（認証済みならGatekeeperが /dashboard へリダイレクトする）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", pageHandler.LoginPage)
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
	})

	// --- 認証が必要なルート ---
	r.Get("/dashboard", pageHandler.Dashboard)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/me", authHandler.Me)
		r.Post("/auth/logout", authHandler.Logout)
		r.Delete("/users/me", userHandler.Withdraw)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", bookHandler.List)
			r.Post("/", bookHandler.Create)
			r.Delete("/", bookHandler.DeleteByQuery)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", bookHandler.Update)
				r.Delete("/", bookHandler.Delete)
			})
		})
	})

	return r
}
