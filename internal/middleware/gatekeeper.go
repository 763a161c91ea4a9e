package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/booklog/internal/auth"
)

// CallerResolver はリクエストから呼び出し元を解決するインターフェース。
// auth.Resolverが実装する。
type CallerResolver interface {
	Resolve(ctx context.Context, r *http.Request, sink auth.CookieSink) (*auth.Caller, error)
}

// GatekeeperConfig はパスごとのアクセス方針の設定。
type GatekeeperConfig struct {
	APIPrefix       string // 未認証なら401（既定: /api）
	ProtectedPrefix string // 未認証ならLoginPathへリダイレクト（既定: /dashboard）
	AuthPrefix      string // 認証済みならHomePathへリダイレクト（既定: /auth）
	LoginPath       string // 既定: /auth/login
	HomePath        string // 既定: /dashboard
}

func (c GatekeeperConfig) withDefaults() GatekeeperConfig {
	if c.APIPrefix == "" {
		c.APIPrefix = "/api"
	}
	if c.ProtectedPrefix == "" {
		c.ProtectedPrefix = "/dashboard"
	}
	if c.AuthPrefix == "" {
		c.AuthPrefix = "/auth"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/auth/login"
	}
	if c.HomePath == "" {
		c.HomePath = "/dashboard"
	}
	return c
}

// pathClass はGatekeeperが判定するパスの分類。
type pathClass int

const (
	classOther pathClass = iota
	classAPI
	classProtected
	classAuth
)

// NewGatekeeper はルーティング前にパス単位のアクセス方針を適用するミドルウェアを返す。
// 対象は /api、/dashboard、/auth 配下のみで、それ以外のパスは呼び出し元を解決せずに通過させる。
// 対象パスでは呼び出し元を1度だけ解決し、コンテキストに格納して後続に渡す。
//
//   - 未認証で /dashboard 配下: LoginPathへ307リダイレクト
//   - 未認証で /api 配下: 401 JSON
//   - 認証済みで /auth 配下: HomePathへ307リダイレクト
//   - セッションストア障害: 500（/api配下はJSON）
func NewGatekeeper(resolver CallerResolver, config GatekeeperConfig) func(next http.Handler) http.Handler {
	config = config.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := classifyRequest(r, config)
			if class == classOther {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := resolver.Resolve(r.Context(), r, auth.ResponseCookieSink{W: w})
			if err != nil {
				slog.Error("failed to resolve caller",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if class == classAPI {
					WriteInternalServerError(w)
				} else {
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
				return
			}

			switch {
			case caller == nil && class == classAPI:
				WriteUnauthorized(w)
				return
			case caller == nil && class == classProtected:
				http.Redirect(w, r, config.LoginPath, http.StatusTemporaryRedirect)
				return
			case caller != nil && class == classAuth:
				http.Redirect(w, r, config.HomePath, http.StatusTemporaryRedirect)
				return
			}

			if caller != nil {
				annotateUserID(r.Context(), caller.UserID)
				r = r.WithContext(ContextWithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// classifyRequest はルーターが参照し得るすべてのパス表現を分類し、最も制限の強い分類を返す。
// chiはRawPathが設定されていればそちらでルーティングするため、%2F を含むパスは
// デコード後のPathとは別の位置に解決される。どちらかが対象パスなら対象として扱う。
func classifyRequest(r *http.Request, config GatekeeperConfig) pathClass {
	candidates := []string{r.URL.Path}
	if r.URL.RawPath != "" {
		candidates = append(candidates, r.URL.RawPath)
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		candidates = append(candidates, rctx.RoutePath)
	}

	result := classOther
	for _, p := range candidates {
		if c := classify(p, config); c != classOther && (result == classOther || c < result) {
			result = c
		}
	}
	return result
}

// classify は正規化したパスをセグメント単位の前方一致で分類する。
func classify(rawPath string, config GatekeeperConfig) pathClass {
	p := cleanPath(rawPath)
	switch {
	case hasSegmentPrefix(p, config.APIPrefix):
		return classAPI
	case hasSegmentPrefix(p, config.ProtectedPrefix):
		return classProtected
	case hasSegmentPrefix(p, config.AuthPrefix):
		return classAuth
	default:
		return classOther
	}
}

// cleanPath はルーターのCleanPathと同じ規則でパスを正規化する。
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// hasSegmentPrefix はpがprefixそのものか、prefix/ で始まる場合にtrueを返す。
// /api は /api と /api/books に一致し、/apix には一致しない。
func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
